// Package storage provides FixedStorage[Tag, T], a fixed-capacity,
// thread-safe object pool indexed by handle.Handle[Tag]. It is the L1
// layer the rest of the core builds on: the job scheduler stores every
// Job and SyncPoint in one, and the event system stores queued deferred
// events in another.
//
// FixedStorage is deliberately policy-free: it claims and releases slots
// and validates handles, nothing more. Eviction policy (which slot to
// reclaim when the storage is full) belongs to the caller, not here.
package storage

import (
	"sync"

	"go.uber.org/atomic"

	"oss.nandlabs.io/enginecore/handle"
	"oss.nandlabs.io/enginecore/l3"
)

var logger = l3.Get()

// slot holds one stored value alongside its occupancy flag and generation
// counter. The generation is bumped on every allocation so a stale handle
// from a previous occupant of the slot fails validation instead of
// silently aliasing the new occupant (ABA prevention).
type slot[T any] struct {
	value      T
	inUse      atomic.Bool
	generation atomic.Uint32
}

// FixedStorage is a fixed-capacity slot array of T, indexed by
// handle.Handle[Tag]. Tag and T are independent: most callers use the
// same type for both (see fixed_storage_test.go), but the job scheduler and
// event system store an unexported record type (jobSlot, syncPointSlot,
// eventRecord) while handing callers handles tagged with a small public
// phantom type (Job, SyncPoint, Event), so a Handle[Job] can never be
// passed where a Handle[SyncPoint] is expected even though both ultimately
// index into a FixedStorage.
//
// The zero value is not usable; construct with New.
type FixedStorage[Tag any, T any] struct {
	slots    []slot[T]
	nextSlot atomic.Uint32
	used     atomic.Int64
	mu       []sync.Mutex // per-slot value-access lock; see Allocate/Release
}

// New allocates a FixedStorage with the given fixed capacity. capacity
// must be > 0 and must fit within handle.MaxIndex.
func New[Tag any, T any](capacity int) *FixedStorage[Tag, T] {
	if capacity <= 0 {
		panic("storage: capacity must be positive")
	}
	if capacity > handle.MaxIndex {
		panic("storage: capacity exceeds handle.MaxIndex")
	}
	return &FixedStorage[Tag, T]{
		slots: make([]slot[T], capacity),
		mu:    make([]sync.Mutex, capacity),
	}
}

// Allocate claims a free slot and initializes it in place by calling init
// with a pointer to the slot's (zero-valued) T, then returns a handle to
// it. It returns an invalid handle if the storage is full; init is not
// called in that case.
//
// init receives a pointer rather than returning a constructed T so that
// types embedding a sync.Mutex or atomic counters (SyncPoint, Job) are
// never copied after their zero value starts life in the slot array —
// the Go equivalent of the original's placement-new-in-raw-storage
// construction.
//
// Allocation is a lock-free claim (CAS on the slot's inUse flag) followed
// by a per-slot mutex hold only around the init call, so concurrent
// Allocate calls on distinct slots never contend with each other.
func (s *FixedStorage[Tag, T]) Allocate(init func(*T)) handle.Handle[Tag] {
	index, ok := s.findAndClaimFreeSlot()
	if !ok {
		logger.WarnF("[storage] storage is full (%d/%d slots used)", s.Used(), s.Capacity())
		return handle.Invalid[Tag]()
	}

	sl := &s.slots[index]
	generation := sl.generation.Add(1)

	s.mu[index].Lock()
	init(&sl.value)
	s.mu[index].Unlock()

	s.used.Add(1)
	s.nextSlot.Store(uint32((int(index) + 1) % len(s.slots)))

	return handle.New[Tag](uint32(index), generation)
}

// Release frees the slot h refers to, replacing its value with the zero
// value of T. It returns false if h does not refer to a currently
// allocated slot (already released, or stale generation).
func (s *FixedStorage[Tag, T]) Release(h handle.Handle[Tag]) bool {
	index, ok := s.validate(h)
	if !ok {
		return false
	}

	sl := &s.slots[index]

	s.mu[index].Lock()
	var zero T
	sl.value = zero
	s.mu[index].Unlock()

	sl.inUse.Store(false)
	s.used.Add(-1)
	return true
}

// Get returns a pointer to the value h refers to, and whether h is valid.
// The pointer remains valid only until the slot is released; callers that
// need to hold a reference across a Release must copy the value out first.
func (s *FixedStorage[Tag, T]) Get(h handle.Handle[Tag]) (*T, bool) {
	index, ok := s.validate(h)
	if !ok {
		return nil, false
	}
	return &s.slots[index].value, true
}

// IsValid reports whether h refers to a currently allocated slot with a
// matching generation.
func (s *FixedStorage[Tag, T]) IsValid(h handle.Handle[Tag]) bool {
	_, ok := s.validate(h)
	return ok
}

// IsUsed reports whether the slot at index is currently allocated,
// regardless of generation. index >= Capacity() returns false.
func (s *FixedStorage[Tag, T]) IsUsed(index uint32) bool {
	if int(index) >= len(s.slots) {
		return false
	}
	return s.slots[index].inUse.Load()
}

// Generation returns the current generation of the slot at index, or 0 if
// index is out of range.
func (s *FixedStorage[Tag, T]) Generation(index uint32) uint32 {
	if int(index) >= len(s.slots) {
		return 0
	}
	return s.slots[index].generation.Load()
}

// HandleForSlot returns a valid handle for the slot at index if it is
// currently in use, or an invalid handle otherwise. Used by the scheduler
// to build handles during eviction scans.
func (s *FixedStorage[Tag, T]) HandleForSlot(index uint32) handle.Handle[Tag] {
	if int(index) >= len(s.slots) || !s.slots[index].inUse.Load() {
		return handle.Invalid[Tag]()
	}
	return handle.New[Tag](index, s.slots[index].generation.Load())
}

// Used returns the number of currently allocated slots.
func (s *FixedStorage[Tag, T]) Used() int {
	return int(s.used.Load())
}

// Capacity returns the fixed capacity this storage was constructed with.
func (s *FixedStorage[Tag, T]) Capacity() int {
	return len(s.slots)
}

// Available returns the number of slots free for allocation.
func (s *FixedStorage[Tag, T]) Available() int {
	return s.Capacity() - s.Used()
}

// IsFull reports whether no slots remain for allocation.
func (s *FixedStorage[Tag, T]) IsFull() bool {
	return s.Used() >= s.Capacity()
}

// IsEmpty reports whether no slots are currently allocated.
func (s *FixedStorage[Tag, T]) IsEmpty() bool {
	return s.Used() == 0
}

// UsageFraction returns the fraction of capacity currently used, in
// [0.0, 1.0]. Used by the scheduler's backpressure thresholds.
func (s *FixedStorage[Tag, T]) UsageFraction() float64 {
	return float64(s.Used()) / float64(s.Capacity())
}

// findAndClaimFreeSlot performs a lock-free linear scan with wraparound
// starting at the nextSlot hint, CAS-claiming the first free slot found.
func (s *FixedStorage[Tag, T]) findAndClaimFreeSlot() (uint32, bool) {
	capacity := len(s.slots)
	start := s.nextSlot.Load()

	for attempt := 0; attempt < capacity; attempt++ {
		index := (int(start) + attempt) % capacity
		if s.slots[index].inUse.CompareAndSwap(false, true) {
			return uint32(index), true
		}
	}
	return 0, false
}

// validate checks h against the current state of its slot, returning the
// slot index on success.
func (s *FixedStorage[Tag, T]) validate(h handle.Handle[Tag]) (uint32, bool) {
	if !h.IsValid() {
		return 0, false
	}
	index := h.Index()
	if int(index) >= len(s.slots) {
		return 0, false
	}
	sl := &s.slots[index]
	if !sl.inUse.Load() {
		return 0, false
	}
	if sl.generation.Load() != h.Generation() {
		return 0, false
	}
	return index, true
}
