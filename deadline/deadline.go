// Package deadline provides cancellable one-shot timers used to arm
// watchdogs against jobs.SyncPoint barriers and jobs.Scheduler waits that
// should not be allowed to hang forever.
//
// Adapted from two teacher idioms rather than either wholesale: chrono's
// scheduled-job model (a function that fires once at a future time,
// cancellable before it does) narrowed down to the single-shot case, and
// fnutils.ExecuteAfter's fire-after-duration call shape. Neither chrono's
// persistence/clustering machinery nor fnutils's blocking wait fits a
// watchdog that must be cancellable from another goroutine without
// blocking it, so this package is a fresh, small synthesis of both rather
// than a call-through to either.
package deadline

import (
	"sync"
	"time"

	"oss.nandlabs.io/enginecore/handle"
	"oss.nandlabs.io/enginecore/jobs"
	"oss.nandlabs.io/enginecore/managers"
)

// Timer is a cancellable one-shot alarm. The zero value is not usable;
// construct with After.
type Timer struct {
	mu        sync.Mutex
	underlying *time.Timer
	fired     bool
	cancelled bool
}

// After schedules fn to run once, after d elapses, unless Cancel stops it
// first. fn runs on its own goroutine, the same scheduling model
// time.AfterFunc uses.
func After(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	t.underlying = time.AfterFunc(d, func() {
		t.mu.Lock()
		if t.cancelled {
			t.mu.Unlock()
			return
		}
		t.fired = true
		t.mu.Unlock()
		fn()
	})
	return t
}

// Cancel stops the timer if it has not already fired, reporting whether
// this call was the one that prevented fn from running.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.cancelled {
		return false
	}
	t.cancelled = true
	t.underlying.Stop()
	return true
}

// Reset reschedules the timer to fire d from now, as long as it has not
// already fired or been cancelled. Reports whether the reschedule took
// effect.
func (t *Timer) Reset(d time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.cancelled {
		return false
	}
	t.underlying.Reset(d)
	return true
}

// Fired reports whether the timer's function has already run.
func (t *Timer) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// CancelSyncPointAfter arms a watchdog that force-cancels sp on sched with
// reason if it has not already been signaled by the time d elapses — a
// safety net for fan-in barriers whose dependents might stall or deadlock.
// Call Cancel on the returned Timer once the caller's own wait on sp
// completes normally, so the watchdog doesn't fire a cancellation against
// a SyncPoint nobody is waiting on anymore.
func CancelSyncPointAfter(sched *jobs.Scheduler, sp handle.Handle[jobs.SyncPoint], d time.Duration, reason string) *Timer {
	return After(d, func() {
		if !sched.IsSignaled(sp) {
			sched.Cancel(sp, reason)
		}
	})
}

// Registry tracks in-flight named timers, so long-lived subsystems (a
// level loader arming several watchdogs, a network layer timing out
// several in-flight requests) can cancel one by name instead of holding
// onto every *Timer they start.
type Registry struct {
	timers managers.ItemManager[*Timer]
}

// NewRegistry creates an empty timer registry.
func NewRegistry() *Registry {
	return &Registry{timers: managers.NewItemManager[*Timer]()}
}

// After starts a timer the same way the package-level After does, and
// tracks it under name. Starting another timer under the same name
// simply overwrites the registry's reference; it does not cancel the
// previous one.
func (r *Registry) After(name string, d time.Duration, fn func()) *Timer {
	t := After(d, func() {
		fn()
		r.timers.Unregister(name)
	})
	r.timers.Register(name, t)
	return t
}

// Cancel cancels the timer registered under name, reporting whether a
// timer by that name was found and this call was the one that stopped it.
func (r *Registry) Cancel(name string) bool {
	t := r.timers.Get(name)
	if t == nil {
		return false
	}
	cancelled := t.Cancel()
	r.timers.Unregister(name)
	return cancelled
}

// Active returns every timer still tracked by the registry, i.e. every
// timer started under a name that has not yet fired or been cancelled.
func (r *Registry) Active() []*Timer {
	return r.timers.Items()
}
