package jobs

import "oss.nandlabs.io/enginecore/handle"

// JobBatch collects a group of job submissions under a single SyncPoint,
// so a caller that wants to fan out N independent jobs and wait for all
// of them doesn't have to create and wire the SyncPoint by hand.
type JobBatch struct {
	scheduler *Scheduler
	sp        handle.Handle[SyncPoint]
	count     uint32
}

// NewJobBatch creates the batch's backing SyncPoint with no initial
// dependents; it only starts waiting on something once Add is called.
// name is for diagnostics only.
func NewJobBatch(scheduler *Scheduler, name string) *JobBatch {
	sp := scheduler.syncPoints.Allocate(func(s *syncPointSlot) {
		initSyncPointSlot(s, 0, name)
	})
	if sp.IsValid() {
		scheduler.counters.syncPointsCreated.Inc()
	}
	return &JobBatch{scheduler: scheduler, sp: sp}
}

// Add submits fn as a member of the batch: the batch's SyncPoint counter
// is incremented before submission and decremented when fn finishes, so
// Wait (or the scheduler's own WaitFor on SyncPoint()) only unblocks once
// every job added so far has run to completion.
func (b *JobBatch) Add(fn Func, priority Priority, name string, affinity WorkerAffinity) (handle.Handle[Job], SubmissionResult) {
	spSlot, ok := b.scheduler.syncPoints.Get(b.sp)
	if !ok {
		return handle.Invalid[Job](), SubmitCriticalFull
	}

	spSlot.AddDependency()
	h, res := b.scheduler.Submit(fn, b.sp, priority, name, affinity)
	if !h.IsValid() {
		// The job never got a slot; undo the dependency count so the
		// batch doesn't wait forever on a job that doesn't exist.
		if last := spSlot.DecrementAndCheck(FailedResult(errBatchMemberNotSubmitted)); last {
			b.scheduler.counters.syncPointsSignaled.Inc()
			b.scheduler.completeSyncPoint(spSlot)
		}
		return h, res
	}

	b.count++
	return h, res
}

// SyncPoint returns the handle to the batch's backing SyncPoint, for
// callers that want to compose it with WaitForMultiple alongside other
// sync points.
func (b *JobBatch) SyncPoint() handle.Handle[SyncPoint] {
	return b.sp
}

// Count returns the number of jobs successfully added to the batch so far.
func (b *JobBatch) Count() uint32 {
	return b.count
}

// Wait blocks until every job added to the batch has completed, helping
// drain the main-thread queue while it waits the same way Scheduler.WaitFor
// does. Must only be called from the main thread.
func (b *JobBatch) Wait() Status {
	return b.scheduler.WaitFor(b.sp)
}

// Cancel cancels the batch's backing SyncPoint, cascading cancellation to
// every job added to the batch so far, the same way Scheduler.Cancel does
// for any other SyncPoint.
func (b *JobBatch) Cancel(reason string) {
	b.scheduler.Cancel(b.sp, reason)
}
