package jobs

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"oss.nandlabs.io/enginecore/handle"
	"oss.nandlabs.io/enginecore/l3"
	"oss.nandlabs.io/enginecore/queue"
	"oss.nandlabs.io/enginecore/storage"
	"oss.nandlabs.io/enginecore/thread"
)

var logger = l3.Get()

// errDependencyFailed and errDependencyCancelled are the reasons attached
// to a job cancelled because the SyncPoint it was waiting on never
// reached Success.
var (
	errDependencyFailed        = errors.New("jobs: dependency sync point failed")
	errDependencyCancelled     = errors.New("jobs: dependency sync point cancelled")
	errBatchMemberNotSubmitted = errors.New("jobs: batch member could not be submitted")
)

// Backpressure is computed as a cascade of three layered fractions of job
// storage capacity, each a tighter (lower) count than the last:
//
//	Layer 1 (healthy):  (Active + Completed + CompletedN1) / MAX_JOBS
//	Layer 2 (moderate): (Active + Completed)                / MAX_JOBS
//	Layer 3 (critical):  Active                             / MAX_JOBS
//
// backpressureLevel reports Layer 1 as long as it stays below
// backpressureLayerThreshold; once Layer 1 saturates it falls through to
// Layer 2, and once that saturates too it falls through to Layer 3 — the
// only layer that can never be inflated by bookkeeping for jobs that have
// already finished. Submission then gates on the resulting single value:
// below backpressureSoftThreshold is healthy, at or above it a submission
// still succeeds but is flagged SubmitRetryableFull, and at or above
// backpressureCriticalThreshold a submission is refused outright unless
// eviction can free a slot.
const (
	backpressureLayerThreshold    = 0.80
	backpressureSoftThreshold     = 0.80
	backpressureCriticalThreshold = 0.95
)

// Config controls a Scheduler's storage sizing and worker pool shape.
type Config struct {
	// MaxJobs bounds how many Job slots exist at once, submitted but not
	// yet evicted. 0 selects a default sized for a demo workload.
	MaxJobs int
	// MaxSyncPoints bounds how many SyncPoint slots exist at once.
	MaxSyncPoints int
	// WorkerCount is the number of worker goroutines. 0 selects
	// runtime.NumCPU()-1, floored at 1, leaving a core free for the
	// caller's own main-thread loop.
	WorkerCount int
}

// DefaultConfig returns sizing suitable for a small interactive
// application; production embedders should size MaxJobs/MaxSyncPoints to
// their own peak in-flight job count.
func DefaultConfig() Config {
	return Config{
		MaxJobs:       8192,
		MaxSyncPoints: 4096,
		WorkerCount:   0,
	}
}

// SubmissionResult reports the outcome of Submit/SubmitAfter.
type SubmissionResult int

const (
	SubmitSuccess SubmissionResult = iota
	SubmitRetryableFull
	SubmitCriticalFull
)

func (r SubmissionResult) String() string {
	switch r {
	case SubmitSuccess:
		return "success"
	case SubmitRetryableFull:
		return "storage_full_retry"
	case SubmitCriticalFull:
		return "storage_full_critical"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time snapshot of scheduler counters, safe to read
// concurrently with everything else the Scheduler does.
type Stats struct {
	JobsSubmitted          uint64
	JobsCompleted          uint64
	JobsFailed             uint64
	JobsCancelled          uint64
	JobsEvictedN1          uint64
	JobsEvictedN2          uint64
	JobsEvictedCompleted   uint64
	SyncPointsCreated      uint64
	SyncPointsSignaled     uint64
	WorkerQueueLengths     [queue.NumPriorities]int
	MainThreadQueueLengths [queue.NumPriorities]int
	JobsInUse              int
	SyncPointsInUse        int
	BackpressureLevel      float64
}

// schedulerCounters holds the atomics backing Stats, kept separate from
// Scheduler so Stats() can be built without taking any lock.
type schedulerCounters struct {
	jobsSubmitted        atomic.Uint64
	jobsCompleted        atomic.Uint64
	jobsFailed           atomic.Uint64
	jobsCancelled        atomic.Uint64
	jobsEvictedN1        atomic.Uint64
	jobsEvictedN2        atomic.Uint64
	jobsEvictedCompleted atomic.Uint64
	syncPointsCreated    atomic.Uint64
	syncPointsSignaled   atomic.Uint64
}

// Scheduler is the job system's central type. Two storage.FixedStorage
// instances hold every live Job and SyncPoint; two queue.PriorityQueue
// instances feed worker goroutines and the caller's main-thread drain;
// an errgroup.Group owns the worker pool's lifecycle.
//
// Grounded on JobScheduler.hpp/JobSystem.cpp: a single owning type wiring
// fixed storage, weighted priority queues and a thread pool together, with
// backpressure and eviction as scheduler-level policy rather than
// storage-level policy.
type Scheduler struct {
	cfg Config

	jobs       *storage.FixedStorage[Job, jobSlot]
	syncPoints *storage.FixedStorage[SyncPoint, syncPointSlot]

	workerQueues *queue.PriorityQueue
	mainQueues   *queue.PriorityQueue

	counters schedulerCounters

	lifecycleMu sync.Mutex
	started     bool
	cancel      context.CancelFunc
	group       *errgroup.Group
	workerCount int

	mainCursor uint32 // single-writer: only the designated main-thread caller touches this
}

// NewScheduler allocates a Scheduler's storage and queues but does not
// start its worker pool; call Start for that.
func NewScheduler(cfg Config) *Scheduler {
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = DefaultConfig().MaxJobs
	}
	if cfg.MaxSyncPoints <= 0 {
		cfg.MaxSyncPoints = DefaultConfig().MaxSyncPoints
	}
	return &Scheduler{
		cfg:          cfg,
		jobs:         storage.New[Job, jobSlot](cfg.MaxJobs),
		syncPoints:   storage.New[SyncPoint, syncPointSlot](cfg.MaxSyncPoints),
		workerQueues: queue.NewPriorityQueue(),
		mainQueues:   queue.NewPriorityQueue(),
	}
}

// Start launches the worker pool. It is an error to call Start twice
// without an intervening Shutdown.
func (s *Scheduler) Start() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started {
		return errors.New("jobs: scheduler already started")
	}

	workerCount := s.cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = runtime.NumCPU() - 1
		if workerCount < 1 {
			workerCount = 1
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)
	s.cancel = cancel
	s.group = group
	s.workerCount = workerCount

	for i := 0; i < workerCount; i++ {
		workerID := uint32(i)
		group.Go(func() error {
			s.runWorker(groupCtx, workerID)
			return nil
		})
	}

	s.started = true
	logger.InfoF("[jobs] scheduler started: %d workers, max_jobs=%d, max_sync_points=%d",
		workerCount, s.cfg.MaxJobs, s.cfg.MaxSyncPoints)
	return nil
}

// Shutdown stops accepting new worker iterations and blocks until every
// worker goroutine has returned. Jobs already executing run to
// completion; jobs still only queued are left in place, unexecuted.
// Shutdown is idempotent.
func (s *Scheduler) Shutdown() {
	s.lifecycleMu.Lock()
	if !s.started {
		s.lifecycleMu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	group := s.group
	s.lifecycleMu.Unlock()

	cancel()
	_ = group.Wait()
	logger.InfoF("[jobs] scheduler shut down")
}

func (s *Scheduler) runWorker(ctx context.Context, workerID uint32) {
	th := thread.New(fmt.Sprintf("job-worker-%d", workerID))
	th.SetPriority(thread.Normal)
	th.Run(func(self *thread.Thread) {
		cursor := rand.Uint32()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if self.ShouldStop() {
				return
			}

			h, ok := s.pullWorkerJob(workerID, &cursor)
			if !ok {
				runtime.Gosched()
				continue
			}
			s.executeJob(h)
		}
	})
}

// pullWorkerJob pulls the next job eligible for workerID off the worker
// queues, requeueing any SpecificWorker job addressed to a different
// worker rather than executing it out of turn.
func (s *Scheduler) pullWorkerJob(workerID uint32, cursor *uint32) (handle.Handle[Job], bool) {
	const maxRequeues = 4
	for attempt := 0; attempt < maxRequeues; attempt++ {
		raw, ok := s.workerQueues.Pull(cursor)
		if !ok {
			return handle.Invalid[Job](), false
		}
		h, _ := raw.(handle.Handle[Job])
		jb, valid := s.jobs.Get(h)
		if !valid {
			// Stale handle: the job was evicted or cancelled out from
			// under the queue entry. Drop it and keep pulling.
			continue
		}
		if jb.affinity.Kind == SpecificWorker && jb.affinity.WorkerID != workerID {
			s.workerQueues.Push(jb.priority, h)
			continue
		}
		return h, true
	}
	return handle.Invalid[Job](), false
}

func (s *Scheduler) executeJob(h handle.Handle[Job]) {
	jb, ok := s.jobs.Get(h)
	if !ok {
		return
	}
	if !jb.casState(Ready, Executing) {
		jb.casState(Pending, Executing)
	}
	jb.started = time.Now()

	result := s.runJobFunc(jb)

	jb.finished = time.Now()
	jb.result = result
	jb.setState(Completed)

	switch result.Status {
	case Success:
		s.counters.jobsCompleted.Inc()
	case Failed:
		s.counters.jobsFailed.Inc()
		logger.WarnF("[jobs] job %q (%v) failed: %v", jb.name, h, result.Err)
	case StatusCancelled:
		s.counters.jobsCancelled.Inc()
	}

	if jb.signalSP.IsValid() {
		s.signalInternal(jb.signalSP, result)
	}
}

// runJobFunc invokes a job's closure, converting a panic into a Failed
// Result rather than letting it escape and kill the worker goroutine —
// one bad job must never take a worker, and the workers it might still
// have queued, down with it.
func (s *Scheduler) runJobFunc(jb *jobSlot) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = FailedResult(fmt.Errorf("jobs: panic in job %q: %v", jb.name, r))
		}
	}()
	if jb.fn == nil {
		return SucceededResult()
	}
	return jb.fn(context.Background())
}

// CreateSyncPoint allocates a new SyncPoint with initialCount outstanding
// dependents. name is for diagnostics only.
func (s *Scheduler) CreateSyncPoint(initialCount uint32, name string) handle.Handle[SyncPoint] {
	h := s.syncPoints.Allocate(func(sp *syncPointSlot) {
		initSyncPointSlot(sp, initialCount, name)
	})
	if h.IsValid() {
		s.counters.syncPointsCreated.Inc()
	} else {
		logger.WarnF("[jobs] CreateSyncPoint(%q) failed: sync point storage full (%d/%d)",
			name, s.syncPoints.Used(), s.syncPoints.Capacity())
	}
	return h
}

// Signal decrements sp's dependency counter with result folded in, waking
// any continuations registered via job dependencies once the counter
// reaches zero.
func (s *Scheduler) Signal(sp handle.Handle[SyncPoint], result Result) {
	s.signalInternal(sp, result)
}

func (s *Scheduler) signalInternal(sp handle.Handle[SyncPoint], result Result) {
	spSlot, ok := s.syncPoints.Get(sp)
	if !ok {
		return
	}
	if last := spSlot.DecrementAndCheck(result); last {
		s.counters.syncPointsSignaled.Inc()
		s.completeSyncPoint(spSlot)
	}
}

// Cancel forces sp's counter to zero and its status to Cancelled,
// propagating cancellation to anything waiting on it. reason is recorded
// against sp and surfaces as the Result.Err cascaded to every continuation,
// so a watchdog-triggered cancellation (e.g. "timeout") is distinguishable
// from any other.
func (s *Scheduler) Cancel(sp handle.Handle[SyncPoint], reason string) {
	spSlot, ok := s.syncPoints.Get(sp)
	if !ok {
		return
	}
	if triggered := spSlot.Cancel(reason); triggered {
		s.counters.syncPointsSignaled.Inc()
		s.completeSyncPoint(spSlot)
	}
}

// IsSignaled reports whether sp's dependency counter has reached zero.
func (s *Scheduler) IsSignaled(sp handle.Handle[SyncPoint]) bool {
	spSlot, ok := s.syncPoints.Get(sp)
	if !ok {
		return false
	}
	return spSlot.IsSignaled()
}

// SyncPointStatus returns sp's current status. An invalid or unknown
// handle reports Failed, since a caller can no longer tell what would
// have happened.
func (s *Scheduler) SyncPointStatus(sp handle.Handle[SyncPoint]) Status {
	spSlot, ok := s.syncPoints.Get(sp)
	if !ok {
		return Failed
	}
	return spSlot.Status()
}

// completeSyncPoint activates or cancels every job registered as a
// continuation of spSlot, depending on the final status it settled on.
func (s *Scheduler) completeSyncPoint(spSlot *syncPointSlot) {
	status := spSlot.Status()
	for _, childHandle := range spSlot.Continuations() {
		child, ok := s.jobs.Get(childHandle)
		if !ok {
			continue
		}
		if status == Success {
			child.casState(Pending, Ready)
			s.enqueue(childHandle, child)
			continue
		}

		reason := errDependencyFailed
		if status == StatusCancelled {
			reason = errDependencyCancelled
			if text := spSlot.CancelReason(); text != "" {
				reason = fmt.Errorf("jobs: sync point cancelled: %s", text)
			}
		}
		cancelResult := CancelledResult(reason)
		if child.signalSP.IsValid() {
			s.signalInternal(child.signalSP, cancelResult)
		}
		child.result = cancelResult
		child.setState(Cancelled)
		s.counters.jobsCancelled.Inc()
	}
}

// Submit allocates a Job running fn and makes it immediately eligible for
// execution. signalSP may be handle.Invalid[SyncPoint]() if the caller
// does not need to be notified of completion.
func (s *Scheduler) Submit(fn Func, signalSP handle.Handle[SyncPoint], priority Priority, name string, affinity WorkerAffinity) (handle.Handle[Job], SubmissionResult) {
	h, res := s.allocateJob(fn, signalSP, priority, name, affinity)
	if !h.IsValid() {
		return h, res
	}
	jb, _ := s.jobs.Get(h)
	jb.setState(Ready)
	s.enqueue(h, jb)
	return h, res
}

// SubmitAfter allocates a Job that only becomes eligible for execution
// once dependsOn is signaled with Success; if dependsOn settles as
// Failed or Cancelled, the job is cancelled without ever running.
func (s *Scheduler) SubmitAfter(dependsOn handle.Handle[SyncPoint], fn Func, signalSP handle.Handle[SyncPoint], priority Priority, name string, affinity WorkerAffinity) (handle.Handle[Job], SubmissionResult) {
	h, res := s.allocateJob(fn, signalSP, priority, name, affinity)
	if !h.IsValid() {
		return h, res
	}

	depSlot, ok := s.syncPoints.Get(dependsOn)
	if !ok {
		// Dependency handle is already gone; treat as satisfied so a job
		// submitted against a stale handle doesn't wait forever.
		jb, _ := s.jobs.Get(h)
		jb.setState(Ready)
		s.enqueue(h, jb)
		return h, res
	}

	depSlot.AddContinuation(h)
	if depSlot.IsSignaled() {
		// Lost the race against a concurrent signal that already drained
		// continuations registered before this one; drive it forward
		// ourselves using the status it settled on.
		if depSlot.Status() == Success {
			jb, _ := s.jobs.Get(h)
			if jb.casState(Pending, Ready) {
				s.enqueue(h, jb)
			}
		} else {
			jb, _ := s.jobs.Get(h)
			jb.setState(Cancelled)
			s.counters.jobsCancelled.Inc()
		}
	}
	return h, res
}

func (s *Scheduler) allocateJob(fn Func, signalSP handle.Handle[SyncPoint], priority Priority, name string, affinity WorkerAffinity) (handle.Handle[Job], SubmissionResult) {
	level := s.backpressureLevel()
	if level >= backpressureCriticalThreshold {
		if !s.evictForSpace() {
			return handle.Invalid[Job](), SubmitCriticalFull
		}
	}

	init := func(j *jobSlot) {
		initJobSlot(j, fn, signalSP, priority, name, affinity)
	}
	h := s.jobs.Allocate(init)
	if !h.IsValid() {
		// Storage was full even though the backpressure cascade hadn't
		// yet crossed the critical threshold (e.g. every slot is still
		// Active). Fall back to the same eviction cascade before giving
		// up outright.
		if !s.evictForSpace() {
			return h, SubmitCriticalFull
		}
		h = s.jobs.Allocate(init)
		if !h.IsValid() {
			return h, SubmitCriticalFull
		}
	}

	s.counters.jobsSubmitted.Inc()
	if level >= backpressureSoftThreshold {
		return h, SubmitRetryableFull
	}
	return h, SubmitSuccess
}

func (s *Scheduler) enqueue(h handle.Handle[Job], jb *jobSlot) {
	if jb.affinity.Kind == MainThreadOnly {
		s.mainQueues.Push(jb.priority, h)
		return
	}
	s.workerQueues.Push(jb.priority, h)
}

// WaitFor blocks the calling goroutine until sp is signaled, helping
// drain the main-thread queue while it waits rather than sitting idle —
// the "help while waiting" strategy from the original job system, so a
// wait on the submitter's own thread still makes forward progress on
// main-thread-only work.
func (s *Scheduler) WaitFor(sp handle.Handle[SyncPoint]) Status {
	for !s.IsSignaled(sp) {
		if h, ok := s.pullMainThreadJob(); ok {
			s.executeJob(h)
			continue
		}
		runtime.Gosched()
	}
	return s.SyncPointStatus(sp)
}

// WaitForMultiple blocks until either all of sps are signaled
// (waitForAll=true) or any one of them is (waitForAll=false), helping
// drain the main-thread queue the same way WaitFor does. It returns the
// index into sps of the sync point that satisfied the wait, or -1 if sps
// is empty.
func (s *Scheduler) WaitForMultiple(sps []handle.Handle[SyncPoint], waitForAll bool) int {
	if len(sps) == 0 {
		return -1
	}
	for {
		satisfiedIndex := -1
		allSignaled := true
		for i, sp := range sps {
			if s.IsSignaled(sp) {
				if satisfiedIndex == -1 {
					satisfiedIndex = i
				}
			} else {
				allSignaled = false
			}
		}
		if waitForAll && allSignaled {
			return satisfiedIndex
		}
		if !waitForAll && satisfiedIndex != -1 {
			return satisfiedIndex
		}
		if h, ok := s.pullMainThreadJob(); ok {
			s.executeJob(h)
			continue
		}
		runtime.Gosched()
	}
}

// HasPendingMainThreadJobs reports whether any job is queued with
// MainThreadOnly affinity.
func (s *Scheduler) HasPendingMainThreadJobs() bool {
	return !s.mainQueues.Empty()
}

// BeginFrame promotes completed-job bookkeeping one eviction generation:
// Completed -> CompletedN1 -> CompletedN2. A CompletedN2 slot is NOT
// released here; it remains in place, its Result still queryable via
// TryGetResult, until allocateJob's eviction cascade actually needs the
// space. Call this once per application frame (or equivalent tick). The
// eviction cascade reclaims CompletedN2 slots first, so a completed job's
// Result normally stays queryable for three frames (Completed, CompletedN1,
// CompletedN2); when storage is exhausted and no older completion is left,
// CompletedN1 and then Completed slots are reclaimed as well.
func (s *Scheduler) BeginFrame() {
	s.scanAndPromote(CompletedN1, func(h handle.Handle[Job]) {
		jb, ok := s.jobs.Get(h)
		if !ok {
			return
		}
		jb.setState(CompletedN2)
		s.counters.jobsEvictedN2.Inc()
	})
	s.scanAndPromote(Completed, func(h handle.Handle[Job]) {
		jb, ok := s.jobs.Get(h)
		if !ok {
			return
		}
		jb.setState(CompletedN1)
		s.counters.jobsEvictedN1.Inc()
	})
}

// scanAndPromote walks every allocated job slot currently in state target,
// invoking apply(h) for each one found. Used by BeginFrame.
func (s *Scheduler) scanAndPromote(target JobState, apply func(handle.Handle[Job])) {
	capacity := s.jobs.Capacity()
	for i := uint32(0); i < uint32(capacity); i++ {
		if !s.jobs.IsUsed(i) {
			continue
		}
		h := s.jobs.HandleForSlot(i)
		if !h.IsValid() {
			continue
		}
		jb, ok := s.jobs.Get(h)
		if !ok || jb.State() != target {
			continue
		}
		apply(h)
	}
}

// evictForSpace reclaims one slot to make room under pressure, trying the
// oldest completion generation first and falling back toward the freshest:
// CompletedN2, then CompletedN1, then Completed as a last resort. Reports
// whether a slot was freed.
func (s *Scheduler) evictForSpace() bool {
	for _, target := range [...]JobState{CompletedN2, CompletedN1, Completed} {
		if s.evictOneInState(target) {
			return true
		}
	}
	return false
}

// evictOneInState releases the first slot found in state target, returning
// whether one was found and released.
func (s *Scheduler) evictOneInState(target JobState) bool {
	capacity := s.jobs.Capacity()
	for i := uint32(0); i < uint32(capacity); i++ {
		if !s.jobs.IsUsed(i) {
			continue
		}
		h := s.jobs.HandleForSlot(i)
		if !h.IsValid() {
			continue
		}
		jb, ok := s.jobs.Get(h)
		if !ok || jb.State() != target {
			continue
		}
		if s.jobs.Release(h) {
			s.counters.jobsEvictedCompleted.Inc()
			return true
		}
	}
	return false
}

// jobStateCounts is a single-scan snapshot of how many job slots are
// currently in each backpressure-relevant state bucket.
type jobStateCounts struct {
	active      int // Pending, Ready, or Executing
	completed   int
	completedN1 int
	completedN2 int
}

func (s *Scheduler) countJobStates() jobStateCounts {
	var c jobStateCounts
	capacity := s.jobs.Capacity()
	for i := uint32(0); i < uint32(capacity); i++ {
		if !s.jobs.IsUsed(i) {
			continue
		}
		h := s.jobs.HandleForSlot(i)
		if !h.IsValid() {
			continue
		}
		jb, ok := s.jobs.Get(h)
		if !ok {
			continue
		}
		switch jb.State() {
		case Pending, Ready, Executing:
			c.active++
		case Completed:
			c.completed++
		case CompletedN1:
			c.completedN1++
		case CompletedN2:
			c.completedN2++
		}
	}
	return c
}

// backpressureLevel computes the layered cascade described at the
// backpressureLayerThreshold declaration: Layer 1 unless it's saturated,
// then Layer 2 unless that's saturated too, then Layer 3.
func (s *Scheduler) backpressureLevel() float64 {
	capacity := s.jobs.Capacity()
	if capacity == 0 {
		return 0
	}
	c := s.countJobStates()
	max := float64(capacity)

	layer1 := float64(c.active+c.completed+c.completedN1) / max
	if layer1 < backpressureLayerThreshold {
		return layer1
	}
	layer2 := float64(c.active+c.completed) / max
	if layer2 < backpressureLayerThreshold {
		return layer2
	}
	return float64(c.active) / max
}

// ProcessMainThreadJobs drains jobs with MainThreadOnly affinity for up
// to budget before returning, so a caller's own frame loop can bound how
// much time it spends on engine work per tick. A budget of 0 drains
// everything currently queued with no time limit.
func (s *Scheduler) ProcessMainThreadJobs(budget time.Duration) {
	deadline := time.Time{}
	if budget > 0 {
		deadline = time.Now().Add(budget)
	}
	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return
		}
		h, ok := s.pullMainThreadJob()
		if !ok {
			return
		}
		s.executeJob(h)
	}
}

func (s *Scheduler) pullMainThreadJob() (handle.Handle[Job], bool) {
	raw, ok := s.mainQueues.Pull(&s.mainCursor)
	if !ok {
		return handle.Invalid[Job](), false
	}
	h, _ := raw.(handle.Handle[Job])
	if _, valid := s.jobs.Get(h); !valid {
		return handle.Invalid[Job](), false
	}
	return h, true
}

// QueueLengths returns the current worker-queue length per priority tier.
func (s *Scheduler) QueueLengths() [queue.NumPriorities]int {
	return s.workerQueues.Lengths()
}

// MainThreadQueueLengths returns the current main-thread-queue length per
// priority tier.
func (s *Scheduler) MainThreadQueueLengths() [queue.NumPriorities]int {
	return s.mainQueues.Lengths()
}

// BackpressureLevel returns the scheduler's current three-layer
// backpressure value in [0.0, 1.0], the same value allocateJob checks
// against backpressureSoftThreshold/backpressureCriticalThreshold.
func (s *Scheduler) BackpressureLevel() float64 {
	return s.backpressureLevel()
}

// TryGetResult looks up h's Result without blocking. It reports false if h
// does not currently reference an allocated job slot, which is also true
// once the job's slot has been evicted — per spec, an evicted job's
// Result becomes permanently unavailable to this call.
func (s *Scheduler) TryGetResult(h handle.Handle[Job]) (Result, bool) {
	jb, ok := s.jobs.Get(h)
	if !ok {
		return Result{}, false
	}
	return jb.result, true
}

// IsJobCompleted reports whether h's job has reached a terminal state
// (Completed, CompletedN1, CompletedN2, or Cancelled). It reports false
// for a handle whose slot no longer exists, the same as for one still
// Pending/Ready/Executing.
func (s *Scheduler) IsJobCompleted(h handle.Handle[Job]) bool {
	jb, ok := s.jobs.Get(h)
	if !ok {
		return false
	}
	switch jb.State() {
	case Completed, CompletedN1, CompletedN2, Cancelled:
		return true
	default:
		return false
	}
}

// Stats returns a snapshot of every scheduler counter.
func (s *Scheduler) Stats() Stats {
	return Stats{
		JobsSubmitted:          s.counters.jobsSubmitted.Load(),
		JobsCompleted:          s.counters.jobsCompleted.Load(),
		JobsFailed:             s.counters.jobsFailed.Load(),
		JobsCancelled:          s.counters.jobsCancelled.Load(),
		JobsEvictedN1:          s.counters.jobsEvictedN1.Load(),
		JobsEvictedN2:          s.counters.jobsEvictedN2.Load(),
		JobsEvictedCompleted:   s.counters.jobsEvictedCompleted.Load(),
		SyncPointsCreated:      s.counters.syncPointsCreated.Load(),
		SyncPointsSignaled:     s.counters.syncPointsSignaled.Load(),
		WorkerQueueLengths:     s.workerQueues.Lengths(),
		MainThreadQueueLengths: s.mainQueues.Lengths(),
		JobsInUse:              s.jobs.Used(),
		SyncPointsInUse:        s.syncPoints.Used(),
		BackpressureLevel:      s.backpressureLevel(),
	}
}
