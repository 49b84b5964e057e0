package events

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/amirylm/lockfree"
	"go.uber.org/atomic"

	"oss.nandlabs.io/enginecore/handle"
	"oss.nandlabs.io/enginecore/jobs"
	"oss.nandlabs.io/enginecore/l3"
	"oss.nandlabs.io/enginecore/queue"
	"oss.nandlabs.io/enginecore/storage"
	"oss.nandlabs.io/enginecore/thread"
)

var logger = l3.Get()

// Config controls a System's storage sizing and main-thread warning
// thresholds.
type Config struct {
	// MaxEvents bounds how many events can be in flight (allocated but not
	// yet dispatched/released) at once. 0 selects a default of 8192.
	MaxEvents int
	// WarnQueueDepth is the deferred-queue depth BeginFrame warns above.
	// 0 selects a default of 1000.
	WarnQueueDepth int
	// WarnStorageFraction is the event storage usage fraction BeginFrame
	// warns above. 0 selects a default of 0.8.
	WarnStorageFraction float64
}

// DefaultConfig returns sizing suitable for a small interactive
// application.
func DefaultConfig() Config {
	return Config{
		MaxEvents:           8192,
		WarnQueueDepth:      1000,
		WarnStorageFraction: 0.8,
	}
}

type systemCounters struct {
	emissionsImmediate   atomic.Uint64
	emissionsDeferred    atomic.Uint64
	emissionsAsync       atomic.Uint64
	emissionsLost        atomic.Uint64
	eventsProcessed      atomic.Uint64
	totalProcessingNanos atomic.Uint64
	minProcessingNanos   atomic.Uint64
	maxProcessingNanos   atomic.Uint64
}

// Stats is a point-in-time snapshot of a System's counters.
type Stats struct {
	EmissionsImmediate uint64
	EmissionsDeferred  uint64
	EmissionsAsync     uint64
	EmissionsLost      uint64
	EventsProcessed    uint64
	MinProcessingTime  time.Duration
	MaxProcessingTime  time.Duration
	TotalProcessingTime time.Duration
	DeferredQueueDepth int
	StorageUsage       float64
}

// DeferredStats is what ProcessDeferredEvents returns for a single drain
// call.
type DeferredStats struct {
	EventsProcessed   int
	TimeSpent         time.Duration
	BudgetExceeded    bool
	PerPriorityCounts [queue.NumPriorities]int
}

type subscription struct {
	id      uint64
	handler func(payload any)
	active  atomic.Bool
}

// Subscription is the handle Subscribe returns; call Unsubscribe to stop
// receiving the event, or simply drop it if the System itself is about to
// be shut down.
type Subscription struct {
	sys    *System
	typeID TypeID
	id     uint64
}

// Unsubscribe removes the subscription. Safe to call more than once, and
// safe to call from any goroutine.
func (s *Subscription) Unsubscribe() {
	s.sys.unsubscribe(s.typeID, s.id)
}

// System is the process-wide (or per-subsystem, nothing here is global)
// event bus: a FixedStorage of in-flight events, a lock-free deferred
// queue, a type-indexed subscriber table, and the jobs.Scheduler Async
// dispatch submits onto.
type System struct {
	cfg Config

	events   *storage.FixedStorage[Event, eventRecord]
	deferred *lockfree.Queue
	deferredLen atomic.Int64

	subsMu    sync.RWMutex
	subs      map[TypeID][]*subscription
	nextSubID atomic.Uint64

	scheduler *jobs.Scheduler

	counters systemCounters
}

// NewSystem allocates a System backed by scheduler's Async dispatch.
// scheduler must already be constructed (it need not be started yet).
func NewSystem(cfg Config, scheduler *jobs.Scheduler) *System {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultConfig().MaxEvents
	}
	if cfg.WarnQueueDepth <= 0 {
		cfg.WarnQueueDepth = DefaultConfig().WarnQueueDepth
	}
	if cfg.WarnStorageFraction <= 0 {
		cfg.WarnStorageFraction = DefaultConfig().WarnStorageFraction
	}
	return &System{
		cfg:       cfg,
		events:    storage.New[Event, eventRecord](cfg.MaxEvents),
		deferred:  lockfree.New(),
		subs:      map[TypeID][]*subscription{},
		scheduler: scheduler,
	}
}

// Subscribe registers handler to run on every future emission of T, per
// T's registered Traits. Per the main-thread invariant, Subscribe must
// only be called from the application's main thread; unsubscribing is
// safe from anywhere.
func Subscribe[T any](sys *System, handler func(event T)) *Subscription {
	id := typeIDFor[T]()
	subID := sys.nextSubID.Add(1)

	sub := &subscription{
		id: subID,
		handler: func(payload any) {
			if typed, ok := payload.(T); ok {
				handler(typed)
			}
		},
	}
	sub.active.Store(true)

	sys.subsMu.Lock()
	sys.subs[id] = append(sys.subs[id], sub)
	sys.subsMu.Unlock()

	return &Subscription{sys: sys, typeID: id, id: subID}
}

func (sys *System) unsubscribe(id TypeID, subID uint64) {
	sys.subsMu.Lock()
	defer sys.subsMu.Unlock()
	list := sys.subs[id]
	for i, sub := range list {
		if sub.id == subID {
			sub.active.Store(false)
			sys.subs[id] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// ActiveSubscriptionCount returns the number of live subscriptions for T.
func ActiveSubscriptionCount[T any](sys *System) int {
	id := typeIDFor[T]()
	sys.subsMu.RLock()
	defer sys.subsMu.RUnlock()
	return len(sys.subs[id])
}

// Emit allocates and routes payload per its registered (or default)
// traits, returning the handle it was briefly stored under. The handle is
// only meaningful for a Deferred event still sitting in the queue;
// Immediate and Async events are released again before Emit (Immediate)
// or the async job (Async) returns.
func Emit[T any](sys *System, payload T) handle.Handle[Event] {
	id := typeIDFor[T]()
	traits := lookupTraits(id)

	_, file, line, _ := runtime.Caller(1)
	location := fmt.Sprintf("%s:%d", file, line)

	h := sys.events.Allocate(func(e *eventRecord) {
		initEventRecord(e, id, payload, currentThreadName(), location)
	})
	if !h.IsValid() {
		sys.counters.emissionsLost.Inc()
		logger.WarnF("[events] event storage full (%d/%d), dropping emission of %T",
			sys.events.Used(), sys.events.Capacity(), payload)
		return h
	}

	switch traits.Mode {
	case Immediate:
		sys.counters.emissionsImmediate.Inc()
		sys.dispatch(id, payload)
		sys.markProcessed(h)
		sys.events.Release(h)
	case Deferred:
		sys.counters.emissionsDeferred.Inc()
		sys.deferred.Enqueue(h)
		sys.deferredLen.Inc()
	case Async:
		sys.counters.emissionsAsync.Inc()
		sys.scheduler.Submit(func(ctx context.Context) jobs.Result {
			sys.dispatch(id, payload)
			sys.markProcessed(h)
			sys.events.Release(h)
			return jobs.SucceededResult()
		}, handle.Invalid[jobs.SyncPoint](), traits.Priority, fmt.Sprintf("event:%T", payload), jobs.Any())
	}
	return h
}

// markProcessed flips h's processed flag, if its slot is still live.
func (sys *System) markProcessed(h handle.Handle[Event]) {
	if rec, ok := sys.events.Get(h); ok {
		rec.processed.Store(true)
	}
}

// IsProcessed reports whether h's event has already been dispatched to its
// subscribers. It reports false for an invalid handle or one whose slot
// has already been released (Immediate and Async events release their
// slot right after dispatch, so this is most useful for a still-queued
// Deferred event, or from within a handler itself).
func (sys *System) IsProcessed(h handle.Handle[Event]) bool {
	rec, ok := sys.events.Get(h)
	if !ok {
		return false
	}
	return rec.processed.Load()
}

func currentThreadName() string {
	if th, ok := thread.Current(); ok {
		return th.Name()
	}
	return "main"
}

// dispatch snapshots the subscriber list for id under the reader lock,
// then invokes each active handler outside the lock, swallowing
// per-handler panics so one bad subscriber can't take down dispatch for
// the rest.
func (sys *System) dispatch(id TypeID, payload any) {
	start := time.Now()

	sys.subsMu.RLock()
	live := sys.subs[id]
	snapshot := make([]*subscription, len(live))
	copy(snapshot, live)
	sys.subsMu.RUnlock()

	for _, sub := range snapshot {
		if !sub.active.Load() {
			continue
		}
		sys.invoke(sub, payload)
	}

	sys.recordProcessingTime(time.Since(start))
	sys.counters.eventsProcessed.Inc()
}

func (sys *System) invoke(sub *subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorF("[events] handler panic for event type %T: %v", payload, r)
		}
	}()
	sub.handler(payload)
}

func (sys *System) recordProcessingTime(d time.Duration) {
	ns := uint64(d)
	sys.counters.totalProcessingNanos.Add(ns)
	for {
		cur := sys.counters.minProcessingNanos.Load()
		if cur != 0 && cur <= ns {
			break
		}
		if sys.counters.minProcessingNanos.CompareAndSwap(cur, ns) {
			break
		}
	}
	for {
		cur := sys.counters.maxProcessingNanos.Load()
		if cur >= ns {
			break
		}
		if sys.counters.maxProcessingNanos.CompareAndSwap(cur, ns) {
			break
		}
	}
}

// BeginFrame samples deferred-queue depth and event storage usage,
// logging a warning if either crosses its configured threshold. Call this
// once per application frame, from the main thread, before or after
// ProcessDeferredEvents.
func (sys *System) BeginFrame() {
	depth := int(sys.deferredLen.Load())
	if depth > sys.cfg.WarnQueueDepth {
		logger.WarnF("[events] deferred queue depth %d exceeds warning threshold %d", depth, sys.cfg.WarnQueueDepth)
	}
	if usage := sys.events.UsageFraction(); usage > sys.cfg.WarnStorageFraction {
		logger.WarnF("[events] event storage at %.0f%% capacity", usage*100)
	}
}

// HasPendingDeferredEvents reports whether any Deferred event is still
// queued, un-dispatched.
func (sys *System) HasPendingDeferredEvents() bool {
	return sys.deferredLen.Load() > 0
}

// ProcessDeferredEvents drains the deferred queue for up to budget,
// dispatching each event in turn. A budget of 0 drains everything
// currently queued with no time limit. If the budget is exceeded after at
// least one event has been processed, the event that triggered the check
// is pushed back onto the queue rather than dropped, and
// DeferredStats.BudgetExceeded is set.
//
// Must only be called from the main thread.
func (sys *System) ProcessDeferredEvents(budget time.Duration) DeferredStats {
	start := time.Now()
	var stats DeferredStats

	var deadline time.Time
	if budget > 0 {
		deadline = start.Add(budget)
	}

	for {
		raw := sys.deferred.Dequeue()
		if raw == nil {
			break
		}
		h, _ := raw.(handle.Handle[Event])
		sys.deferredLen.Dec()

		if !deadline.IsZero() && stats.EventsProcessed > 0 && time.Now().After(deadline) {
			sys.deferred.Enqueue(h)
			sys.deferredLen.Inc()
			stats.BudgetExceeded = true
			break
		}

		sys.drainOne(h, &stats)
	}

	stats.TimeSpent = time.Since(start)
	return stats
}

func (sys *System) drainOne(h handle.Handle[Event], stats *DeferredStats) {
	rec, ok := sys.events.Get(h)
	if !ok {
		return
	}
	traits := lookupTraits(rec.typeID)
	sys.dispatch(rec.typeID, rec.payload)
	sys.markProcessed(h)
	sys.events.Release(h)
	stats.EventsProcessed++
	stats.PerPriorityCounts[traits.Priority]++
}

// Shutdown flushes every remaining deferred event with no time limit,
// then clears every subscription.
func (sys *System) Shutdown() {
	sys.ProcessDeferredEvents(0)
	sys.subsMu.Lock()
	sys.subs = map[TypeID][]*subscription{}
	sys.subsMu.Unlock()
	logger.InfoF("[events] shut down")
}

// Stats returns a snapshot of every System counter.
func (sys *System) Stats() Stats {
	return Stats{
		EmissionsImmediate:   sys.counters.emissionsImmediate.Load(),
		EmissionsDeferred:    sys.counters.emissionsDeferred.Load(),
		EmissionsAsync:       sys.counters.emissionsAsync.Load(),
		EmissionsLost:        sys.counters.emissionsLost.Load(),
		EventsProcessed:      sys.counters.eventsProcessed.Load(),
		MinProcessingTime:    time.Duration(sys.counters.minProcessingNanos.Load()),
		MaxProcessingTime:    time.Duration(sys.counters.maxProcessingNanos.Load()),
		TotalProcessingTime:  time.Duration(sys.counters.totalProcessingNanos.Load()),
		DeferredQueueDepth:   int(sys.deferredLen.Load()),
		StorageUsage:         sys.events.UsageFraction(),
	}
}
