// Package jobs is the L2 layer of the core: Job, SyncPoint, and the
// Scheduler that ties them to a worker pool and a set of priority queues.
// Application code submits closures as jobs, expresses dependencies
// through SyncPoint barriers, and the scheduler takes care of queueing,
// execution, failure cascade, and eviction under backpressure.
package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"oss.nandlabs.io/enginecore/handle"
	"oss.nandlabs.io/enginecore/queue"
)

// JobState is a job's lifecycle marker. States only move forward; see the
// Scheduler's state machine documentation for the full transition diagram.
type JobState int32

const (
	Pending JobState = iota
	Ready
	Executing
	Completed
	CompletedN1
	CompletedN2
	Cancelled
)

func (s JobState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Executing:
		return "executing"
	case Completed:
		return "completed"
	case CompletedN1:
		return "completed_n1"
	case CompletedN2:
		return "completed_n2"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Priority reuses queue.Priority so job priority and queue tier are the
// same type throughout the scheduler.
type Priority = queue.Priority

const (
	PriorityCritical = queue.Critical
	PriorityHigh     = queue.High
	PriorityNormal   = queue.Normal
	PriorityLow      = queue.Low
)

// AffinityKind distinguishes the three shapes WorkerAffinity can take.
type AffinityKind int

const (
	AnyWorker AffinityKind = iota
	MainThreadOnly
	SpecificWorker
)

// WorkerAffinity constrains which worker may execute a job. It is a Go
// sum type substitute: Kind selects the active field, WorkerID is only
// meaningful when Kind == SpecificWorker.
type WorkerAffinity struct {
	Kind     AffinityKind
	WorkerID uint32
}

// Any is the default affinity: any worker goroutine may run the job.
func Any() WorkerAffinity { return WorkerAffinity{Kind: AnyWorker} }

// MainThread restricts the job to the main thread's per-frame drain or
// wait_for's help-while-waiting, never a worker goroutine.
func MainThread() WorkerAffinity { return WorkerAffinity{Kind: MainThreadOnly} }

// Worker restricts the job to a specific worker id.
func Worker(id uint32) WorkerAffinity {
	return WorkerAffinity{Kind: SpecificWorker, WorkerID: id}
}

// Status is the terminal outcome of a job or SyncPoint.
type Status int32

const (
	Success Status = iota
	Failed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Failed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is a job's outcome: status plus, on failure or cancellation, the
// error that explains it.
type Result struct {
	Status Status
	Err    error
}

// SucceededResult is the Result every job function should return on the
// happy path.
func SucceededResult() Result { return Result{Status: Success} }

// FailedResult wraps err as a Failed Result.
func FailedResult(err error) Result { return Result{Status: Failed, Err: err} }

// CancelledResult wraps reason as a CancelledResult.
func CancelledResult(reason error) Result { return Result{Status: StatusCancelled, Err: reason} }

// Func is the closure a submitted job runs. The scheduler passes a context
// that is never cancelled: an executing job always runs to completion, and a
// job still queued at Shutdown is simply not run.
type Func func(ctx context.Context) Result

// Job is the phantom type parameter tagging handles returned by
// Scheduler.Submit; Handle[Job] values never carry a *jobSlot directly,
// they index into the scheduler's job FixedStorage.
type Job struct{}

// jobSlot is the record stored in the scheduler's job FixedStorage. It is
// unexported: the public surface is entirely the Handle[Job] returned by
// Submit plus the query methods on Scheduler.
type jobSlot struct {
	state     atomic.Int32
	fn        Func
	signalSP  handle.Handle[SyncPoint]
	priority  Priority
	affinity  WorkerAffinity
	name      string
	result    Result
	submitted time.Time
	started   time.Time
	finished  time.Time
}

// initJobSlot initializes a zero-valued jobSlot in place, the init
// callback storage.FixedStorage.Allocate calls on a slot's address. An
// empty name is replaced with a generated one, so every job is
// identifiable in logs and metrics even when the caller didn't bother
// naming it.
func initJobSlot(j *jobSlot, fn Func, signalSP handle.Handle[SyncPoint], priority Priority, name string, affinity WorkerAffinity) {
	if name == "" {
		name = generateJobName()
	}
	j.state.Store(int32(Pending))
	j.fn = fn
	j.signalSP = signalSP
	j.priority = priority
	j.affinity = affinity
	j.name = name
	j.result = Result{}
	j.submitted = time.Now()
}

// generateJobName produces a short, collision-resistant fallback name.
func generateJobName() string {
	return "job-" + uuid.New().String()
}

func (j *jobSlot) State() JobState {
	return JobState(j.state.Load())
}

func (j *jobSlot) setState(s JobState) {
	j.state.Store(int32(s))
}

// casState attempts to move the job from `from` to `to`, returning whether
// it succeeded.
func (j *jobSlot) casState(from, to JobState) bool {
	return j.state.CompareAndSwap(int32(from), int32(to))
}
