// Package events is the L3 layer of the core: a type-indexed publish and
// subscribe bus built on top of storage.FixedStorage and jobs.Scheduler,
// routing each event by the execution mode fixed for its Go type at
// registration time.
//
// Grounded on EventSystem.hpp/cpp: the same three routing modes
// (Immediate, Deferred, Async), the same snapshot-under-lock dispatch, the
// same per-type trait table looked up once per emission.
package events

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/atomic"

	"oss.nandlabs.io/enginecore/jobs"
)

// TypeID is the stable identifier for a Go event type, derived from a hash
// of its type name. Two values of the same Go type always hash to the
// same TypeID within a process; there is no cross-process stability
// guarantee or need for one.
type TypeID uint32

// InvalidTypeID is the reserved value meaning "no event type". A real hash
// that collides with it is remapped to 1.
const InvalidTypeID TypeID = 0

// typeIDFor derives T's TypeID from its formatted type name. Called once
// per Emit/Subscribe/RegisterEventType call; callers on a hot path should
// still prefer caching the Subscription they get back rather than
// resubscribing every frame, but hashing a short string is cheap enough
// that this is not a bottleneck in practice.
func typeIDFor[T any]() TypeID {
	var zero T
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%T", zero)))
	id := TypeID(h.Sum32())
	if id == InvalidTypeID {
		return 1
	}
	return id
}

// ExecutionMode selects how an emitted event reaches its subscribers.
type ExecutionMode int

const (
	// Immediate invokes every subscriber synchronously, in the emitting
	// goroutine, before Emit returns.
	Immediate ExecutionMode = iota
	// Deferred pushes the event onto a queue drained by ProcessDeferredEvents,
	// normally called once per application frame from the main thread.
	Deferred
	// Async submits a job to the scheduler (AnyWorker affinity) that
	// performs the same dispatch Deferred would, off the emitting thread.
	Async
)

func (m ExecutionMode) String() string {
	switch m {
	case Immediate:
		return "immediate"
	case Deferred:
		return "deferred"
	case Async:
		return "async"
	default:
		return "unknown"
	}
}

// Category is an application-defined bitmask, e.g. distinguishing input
// events from window events, left uninterpreted by this package.
type Category uint32

// Traits are the per-type routing rules fixed once, at registration time,
// for every event of a given Go type — never re-evaluated per emission.
type Traits struct {
	Mode               ExecutionMode
	Priority           jobs.Priority
	RequiresMainThread bool
	Category           Category
}

// defaultTraits is applied to any event type Emit is called with before
// RegisterEventType has registered explicit traits for it.
var defaultTraits = Traits{Mode: Immediate, Priority: jobs.PriorityNormal}

var (
	traitsMu   sync.RWMutex
	traitsByID = map[TypeID]Traits{}
)

// RegisterEventType associates traits with T's TypeID, normally called
// once from an init() function alongside the event type's declaration.
// Calling it again for the same T replaces the previous traits.
func RegisterEventType[T any](traits Traits) TypeID {
	id := typeIDFor[T]()
	traitsMu.Lock()
	traitsByID[id] = traits
	traitsMu.Unlock()
	return id
}

func lookupTraits(id TypeID) Traits {
	traitsMu.RLock()
	t, ok := traitsByID[id]
	traitsMu.RUnlock()
	if !ok {
		return defaultTraits
	}
	return t
}

// Event is the phantom type parameter tagging handle.Handle values the
// System hands out for queued deferred events; it never carries an
// eventRecord directly, the same handle-indirection pattern jobs.Job and
// jobs.SyncPoint use.
type Event struct{}

// eventRecord is what actually lives in the System's FixedStorage: the
// type-erased payload plus emission metadata. Unexported; callers only
// ever see the typed payload their handler was registered for. Per spec,
// an event is immutable after construction except for its processed flag
// and timing fields.
type eventRecord struct {
	typeID         TypeID
	payload        any
	emittedAt      time.Time
	sourceThread   string
	sourceLocation string
	processed      atomic.Bool
}

func initEventRecord(e *eventRecord, typeID TypeID, payload any, sourceThread, sourceLocation string) {
	e.typeID = typeID
	e.payload = payload
	e.emittedAt = time.Now()
	e.sourceThread = sourceThread
	e.sourceLocation = sourceLocation
	e.processed.Store(false)
}
