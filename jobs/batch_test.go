package jobs

import (
	"context"
	"sync/atomic"
	"testing"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := NewScheduler(Config{MaxJobs: 64, MaxSyncPoints: 64, WorkerCount: 2})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(s.Shutdown)
	return s
}

func TestJobBatchWaitsForAllMembers(t *testing.T) {
	s := newTestScheduler(t)
	batch := NewJobBatch(s, "fan-out")

	var ran int32
	for i := 0; i < 8; i++ {
		_, res := batch.Add(func(ctx context.Context) Result {
			atomic.AddInt32(&ran, 1)
			return SucceededResult()
		}, PriorityNormal, "member", Any())
		if res != SubmitSuccess {
			t.Fatalf("Add() = %v, want SubmitSuccess", res)
		}
	}

	status := batch.Wait()
	if status != Success {
		t.Fatalf("Wait() = %v, want Success", status)
	}
	if got := atomic.LoadInt32(&ran); got != 8 {
		t.Fatalf("ran = %d, want 8", got)
	}
	if batch.Count() != 8 {
		t.Fatalf("Count() = %d, want 8", batch.Count())
	}
}

func TestJobBatchPropagatesFailure(t *testing.T) {
	s := newTestScheduler(t)
	batch := NewJobBatch(s, "fan-out-fail")

	batch.Add(func(ctx context.Context) Result {
		return SucceededResult()
	}, PriorityNormal, "ok", Any())
	batch.Add(func(ctx context.Context) Result {
		return FailedResult(nil)
	}, PriorityNormal, "bad", Any())

	if status := batch.Wait(); status != Failed {
		t.Fatalf("Wait() = %v, want Failed", status)
	}
}

func TestJobBatchCancelSignalsWaiters(t *testing.T) {
	s := newTestScheduler(t)
	batch := NewJobBatch(s, "cancel-me")

	gate := make(chan struct{})
	_, res := batch.Add(func(ctx context.Context) Result {
		<-gate
		return SucceededResult()
	}, PriorityNormal, "blocked-member", Any())
	if res != SubmitSuccess {
		t.Fatalf("Add() = %v, want SubmitSuccess", res)
	}

	batch.Cancel("shutdown")

	if status := batch.Wait(); status != StatusCancelled {
		t.Fatalf("Wait() after Cancel() = %v, want StatusCancelled", status)
	}

	close(gate) // let the blocked member finish so Shutdown doesn't hang
}
