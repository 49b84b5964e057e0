package jobs

import (
	"runtime"
	"sync"
	"time"

	"go.uber.org/atomic"

	"oss.nandlabs.io/enginecore/handle"
)

// InlineContinuations is the number of continuation slots a SyncPoint
// holds inline, without touching the overflow slice. Fan-out beyond this
// is rare in practice; the spec calls it out explicitly as an acceptable
// place to pay for a lock.
const InlineContinuations = 6

// SyncPoint is the phantom type parameter tagging handles into the
// scheduler's SyncPoint FixedStorage.
type SyncPoint struct{}

// syncPointSlot is a reference-counted completion barrier: a counter of
// outstanding dependencies and a monotonically degrading status, plus the
// list of jobs to activate once the counter reaches zero.
//
// Matches SyncPoint.cpp's control flow: CAS-loop claim of inline slots,
// spinlock-guarded overflow growth, first-failure-wins status CAS.
type syncPointSlot struct {
	counter atomic.Uint32
	status  atomic.Int32 // Status, monotonically degrading from Success

	inline      [InlineContinuations]atomic.Uint32 // packed handle.Handle[Job]
	inlineCount atomic.Uint32

	overflowMu  sync.Mutex // substitutes for the source's spinlock; see DESIGN.md
	overflow    []handle.Handle[Job]
	hasOverflow atomic.Bool

	debugName    string
	creationTime time.Time
	cancelReason string
}

// initSyncPointSlot initializes a zero-valued syncPointSlot in place. It is
// the init callback storage.FixedStorage.Allocate calls on a slot's
// address, so the SyncPoint's mutex and atomics are never copied after
// they start their zero-valued life in the storage's backing array.
func initSyncPointSlot(sp *syncPointSlot, initialCount uint32, name string) {
	sp.debugName = name
	sp.creationTime = time.Now()
	sp.counter.Store(initialCount)
	sp.status.Store(int32(Success))
	for i := range sp.inline {
		sp.inline[i].Store(handle.Invalid[Job]().Packed())
	}
}

// newSyncPointSlot is a standalone constructor used by this package's own
// unit tests, which exercise syncPointSlot directly without going through
// a FixedStorage.
func newSyncPointSlot(initialCount uint32, name string) *syncPointSlot {
	sp := &syncPointSlot{}
	initSyncPointSlot(sp, initialCount, name)
	return sp
}

// Status returns the SyncPoint's current (possibly still provisional)
// status.
func (sp *syncPointSlot) Status() Status {
	return Status(sp.status.Load())
}

// IsSignaled reports whether the counter has reached zero.
func (sp *syncPointSlot) IsSignaled() bool {
	return sp.counter.Load() == 0
}

// DecrementAndCheck folds result's status into the SyncPoint (degrading it
// on failure/cancellation) and decrements the dependency counter,
// reporting whether this call was the one that drove it to zero.
func (sp *syncPointSlot) DecrementAndCheck(result Result) bool {
	if result.Status != Success {
		sp.propagateFailure(result.Status)
	}
	previous := sp.counter.Dec() + 1
	return previous == 1
}

// AddDependency increments the outstanding dependency counter by one.
// JobBatch calls this before submitting each member job, so the counter
// is already nonzero by the time the first job could possibly finish and
// call DecrementAndCheck — otherwise a batch's SyncPoint could observe a
// spurious transient zero between adding its first and second job.
func (sp *syncPointSlot) AddDependency() {
	sp.counter.Inc()
}

// Cancel forces the counter to zero and the status to Cancelled,
// regardless of its prior value, and reports whether this call drove the
// counter from nonzero to zero (i.e. whether completion processing should
// run). reason is recorded only when this call is the one that triggers
// completion, so the first Cancel always wins, consistent with
// propagateFailure's "status never improves" rule.
func (sp *syncPointSlot) Cancel(reason string) bool {
	previous := sp.counter.Swap(0)
	sp.status.Store(int32(StatusCancelled))
	if previous != 0 {
		sp.cancelReason = reason
	}
	return previous != 0
}

// CancelReason returns the reason passed to the Cancel call that drove
// this SyncPoint to completion, or "" if it was never explicitly
// cancelled.
func (sp *syncPointSlot) CancelReason() string {
	return sp.cancelReason
}

// propagateFailure CASes status from Success to failureStatus; if another
// job already degraded it first, this is a silent no-op (first failure
// wins, consistent with "status never improves").
func (sp *syncPointSlot) propagateFailure(failureStatus Status) {
	sp.status.CompareAndSwap(int32(Success), int32(failureStatus))
}

// AddContinuation registers h to be activated once the SyncPoint's
// counter reaches zero. It claims an inline slot via CAS when one is
// free, falling back to the spinlock-guarded overflow slice for fan-out
// beyond InlineContinuations.
func (sp *syncPointSlot) AddContinuation(h handle.Handle[Job]) {
	for {
		current := sp.inlineCount.Load()
		if current >= InlineContinuations {
			break
		}
		if sp.inlineCount.CompareAndSwap(current, current+1) {
			sp.inline[current].Store(h.Packed())
			return
		}
		// CAS lost the race; retry with the refreshed count.
	}
	sp.addToOverflow(h)
}

func (sp *syncPointSlot) addToOverflow(h handle.Handle[Job]) {
	for !sp.overflowMu.TryLock() {
		runtime.Gosched()
	}
	sp.overflow = append(sp.overflow, h)
	sp.hasOverflow.Store(true)
	sp.overflowMu.Unlock()
}

// Continuations returns every job handle registered via AddContinuation,
// inline slots first followed by the overflow slice.
func (sp *syncPointSlot) Continuations() []handle.Handle[Job] {
	count := sp.inlineCount.Load()
	if count > InlineContinuations {
		count = InlineContinuations
	}
	out := make([]handle.Handle[Job], 0, count)
	for i := uint32(0); i < count; i++ {
		h := handle.FromPacked[Job](sp.inline[i].Load())
		if h.IsValid() {
			out = append(out, h)
		}
	}

	if sp.hasOverflow.Load() {
		for !sp.overflowMu.TryLock() {
			runtime.Gosched()
		}
		out = append(out, sp.overflow...)
		sp.overflowMu.Unlock()
	}
	return out
}
