package jobs

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"oss.nandlabs.io/enginecore/handle"
)

func TestSubmitAfterRunsOnlyOnceDependencySignals(t *testing.T) {
	s := newTestScheduler(t)

	dep := s.CreateSyncPoint(1, "dep")
	s.Submit(func(ctx context.Context) Result {
		return SucceededResult()
	}, dep, PriorityNormal, "dep-signaler", Any())

	var ran int32
	_, res := s.SubmitAfter(dep, func(ctx context.Context) Result {
		atomic.AddInt32(&ran, 1)
		return SucceededResult()
	}, handle.Invalid[SyncPoint](), PriorityNormal, "continuation", Any())
	if res != SubmitSuccess {
		t.Fatalf("SubmitAfter() = %v, want SubmitSuccess", res)
	}

	s.WaitFor(dep)
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&ran) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if atomic.LoadInt32(&ran) != 1 {
		t.Fatalf("ran = %d, want 1", atomic.LoadInt32(&ran))
	}
}

func TestTryGetResultReflectsCompletion(t *testing.T) {
	s := newTestScheduler(t)

	sp := s.CreateSyncPoint(1, "probe")
	h, res := s.Submit(func(ctx context.Context) Result {
		return SucceededResult()
	}, sp, PriorityNormal, "quick-job", Any())
	if res != SubmitSuccess {
		t.Fatalf("Submit() = %v, want SubmitSuccess", res)
	}

	if s.IsJobCompleted(h) {
		t.Fatal("IsJobCompleted() = true before the job could possibly have run")
	}

	s.WaitFor(sp)

	if !s.IsJobCompleted(h) {
		t.Fatal("IsJobCompleted() = false after the job completed")
	}
	result, ok := s.TryGetResult(h)
	if !ok || result.Status != Success {
		t.Fatalf("TryGetResult() = (%v, %v), want a Success result", result, ok)
	}

	if ok := s.IsJobCompleted(handle.Invalid[Job]()); ok {
		t.Fatal("IsJobCompleted() = true for an invalid handle")
	}
	if _, ok := s.TryGetResult(handle.Invalid[Job]()); ok {
		t.Fatal("TryGetResult() = true for an invalid handle")
	}
}

func TestCancelReasonPropagatesToContinuation(t *testing.T) {
	s := newTestScheduler(t)

	dep := s.CreateSyncPoint(1, "watched")

	continuationSP := s.CreateSyncPoint(1, "watches-continuation")
	h, res := s.SubmitAfter(dep, func(ctx context.Context) Result {
		return SucceededResult()
	}, continuationSP, PriorityNormal, "watched-continuation", Any())
	if res != SubmitSuccess {
		t.Fatalf("SubmitAfter() = %v, want SubmitSuccess", res)
	}

	s.Cancel(dep, "watchdog timeout")

	if status := s.WaitFor(continuationSP); status != StatusCancelled {
		t.Fatalf("WaitFor(continuationSP) = %v, want StatusCancelled", status)
	}

	result, ok := s.TryGetResult(h)
	if !ok || result.Status != StatusCancelled {
		t.Fatalf("TryGetResult() = (%v, %v), want a StatusCancelled result", result, ok)
	}
	if result.Err == nil || !strings.Contains(result.Err.Error(), "watchdog timeout") {
		t.Fatalf("result.Err = %v, want it to mention the cancellation reason", result.Err)
	}
}

func TestSubmitAfterSkipsOnDependencyFailure(t *testing.T) {
	s := newTestScheduler(t)

	dep := s.CreateSyncPoint(1, "dep")
	s.Submit(func(ctx context.Context) Result {
		return FailedResult(nil)
	}, dep, PriorityNormal, "failing-dep", Any())

	var ran int32
	s.SubmitAfter(dep, func(ctx context.Context) Result {
		atomic.AddInt32(&ran, 1)
		return SucceededResult()
	}, handle.Invalid[SyncPoint](), PriorityNormal, "should-be-skipped", Any())

	s.WaitFor(dep)
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&ran) != 0 {
		t.Fatalf("continuation ran after dependency failure, ran = %d", atomic.LoadInt32(&ran))
	}
}

func TestBackpressureLevelTracksUsage(t *testing.T) {
	s := NewScheduler(Config{MaxJobs: 10, MaxSyncPoints: 10, WorkerCount: 1})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Shutdown()

	if got := s.BackpressureLevel(); got != 0 {
		t.Fatalf("BackpressureLevel() = %v before any submission, want 0", got)
	}

	gate := make(chan struct{})
	for i := 0; i < 9; i++ {
		s.Submit(func(ctx context.Context) Result {
			<-gate
			return SucceededResult()
		}, handle.Invalid[SyncPoint](), PriorityNormal, "held", Any())
	}

	deadline := time.Now().Add(time.Second)
	for s.BackpressureLevel() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := s.BackpressureLevel(); got <= 0 {
		t.Fatalf("BackpressureLevel() = %v with 9/10 slots claimed, want > 0", got)
	}
	close(gate)
}

func TestMainThreadOnlyJobsRunOnlyViaProcessMainThreadJobs(t *testing.T) {
	s := newTestScheduler(t)

	var ran int32
	s.Submit(func(ctx context.Context) Result {
		atomic.AddInt32(&ran, 1)
		return SucceededResult()
	}, handle.Invalid[SyncPoint](), PriorityNormal, "main-only", MainThread())

	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&ran) != 0 {
		t.Fatal("main-thread job ran on a worker goroutine")
	}

	s.ProcessMainThreadJobs(50 * time.Millisecond)
	if atomic.LoadInt32(&ran) != 1 {
		t.Fatalf("ran = %d after ProcessMainThreadJobs, want 1", atomic.LoadInt32(&ran))
	}
}

func TestBeginFramePromotesButDoesNotEvict(t *testing.T) {
	s := newTestScheduler(t)

	sp := s.CreateSyncPoint(1, "evict-probe")
	h, _ := s.Submit(func(ctx context.Context) Result {
		return SucceededResult()
	}, sp, PriorityNormal, "short-job", Any())
	s.WaitFor(sp)

	before := s.Stats().JobsInUse
	for i := 0; i < 4; i++ {
		s.BeginFrame()
	}
	after := s.Stats().JobsInUse
	if after != before {
		t.Fatalf("JobsInUse changed after BeginFrame cycles with no pressure: before=%d after=%d", before, after)
	}
	if _, ok := s.TryGetResult(h); !ok {
		t.Fatal("TryGetResult() = false after BeginFrame cycles; CompletedN2 must remain until evicted under pressure")
	}
	if !s.IsJobCompleted(h) {
		t.Fatal("IsJobCompleted() = false for a job well past completion")
	}
}

func TestTryGetResultUnavailableAfterEviction(t *testing.T) {
	s := NewScheduler(Config{MaxJobs: 1, MaxSyncPoints: 4, WorkerCount: 1})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Shutdown()

	sp := s.CreateSyncPoint(1, "only-slot")
	h, res := s.Submit(func(ctx context.Context) Result {
		return SucceededResult()
	}, sp, PriorityNormal, "fills-the-only-slot", Any())
	if res != SubmitSuccess {
		t.Fatalf("Submit() = %v, want SubmitSuccess", res)
	}
	s.WaitFor(sp)
	if result, ok := s.TryGetResult(h); !ok || result.Status != Success {
		t.Fatalf("TryGetResult() = (%v, %v), want a Success result", result, ok)
	}

	// With the storage's single slot occupied by a Completed job, the next
	// submission must evict it (Completed is the last-resort eviction
	// target) before it can succeed.
	sp2 := s.CreateSyncPoint(1, "evictor")
	_, res2 := s.Submit(func(ctx context.Context) Result {
		return SucceededResult()
	}, sp2, PriorityNormal, "evicts-the-completed-job", Any())
	if res2 != SubmitSuccess {
		t.Fatalf("Submit() after eviction = %v, want SubmitSuccess", res2)
	}

	if _, ok := s.TryGetResult(h); ok {
		t.Fatal("TryGetResult() = true for a job whose slot was evicted to make room")
	}
}
