// Package queue provides the lock-free, multi-priority MPMC queues the job
// scheduler pulls work from. Each PriorityQueue is four independent
// github.com/amirylm/lockfree queues, one per Priority, read from using a
// fixed 15-slot weighted rotation that gives Critical roughly eight times
// the pull share of Low without ever starving it outright.
package queue

import (
	"go.uber.org/atomic"

	"github.com/amirylm/lockfree"
)

// Priority enumerates the four job/event priority tiers, most urgent first.
type Priority int

const (
	Critical Priority = iota
	High
	Normal
	Low
)

// NumPriorities is the number of distinct priority tiers.
const NumPriorities = 4

// String renders a Priority for logging and stats output.
func (p Priority) String() string {
	switch p {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Normal:
		return "normal"
	case Low:
		return "low"
	default:
		return "unknown"
	}
}

// pullTable is the fixed weighted rotation: 8 Critical, 4 High, 2 Normal,
// 1 Low slots, visited in this order starting from a caller-owned cursor.
var pullTable = [15]Priority{
	Critical, Critical, Critical, Critical, Critical, Critical, Critical, Critical,
	High, High, High, High,
	Normal, Normal,
	Low,
}

// PriorityQueue is a set of four lock-free MPMC queues, pulled from using
// the weighted anti-starvation table. The zero value is not usable;
// construct with NewPriorityQueue.
type PriorityQueue struct {
	queues [NumPriorities]*lockfree.Queue
	lens   [NumPriorities]atomic.Int64
}

// NewPriorityQueue allocates a PriorityQueue backed by one lockfree.Queue
// per priority tier.
func NewPriorityQueue() *PriorityQueue {
	pq := &PriorityQueue{}
	for i := range pq.queues {
		pq.queues[i] = lockfree.New()
	}
	return pq
}

// Push enqueues item onto the queue for priority p.
func (pq *PriorityQueue) Push(p Priority, item any) {
	pq.queues[p].Enqueue(item)
	pq.lens[p].Add(1)
}

// Pull attempts to dequeue one item, trying each priority in the order
// given by the weighted table starting at *cursor, and advances *cursor by
// one regardless of whether an item was found. cursor should be a field
// the caller keeps per-worker (a goroutine-local rotating offset, seeded
// however the caller likes) so concurrent workers don't all start their
// sweep from the same slot.
func (pq *PriorityQueue) Pull(cursor *uint32) (any, bool) {
	start := *cursor
	*cursor = (start + 1) % uint32(len(pullTable))

	for attempt := 0; attempt < len(pullTable); attempt++ {
		p := pullTable[(int(start)+attempt)%len(pullTable)]
		if item := pq.queues[p].Dequeue(); item != nil {
			pq.lens[p].Add(-1)
			return item, true
		}
	}
	return nil, false
}

// TryPop dequeues directly from a single priority's queue, bypassing the
// weighted rotation. The scheduler itself only dequeues through Pull;
// TryPop is used by tests.
func (pq *PriorityQueue) TryPop(p Priority) (any, bool) {
	item := pq.queues[p].Dequeue()
	if item == nil {
		return nil, false
	}
	pq.lens[p].Add(-1)
	return item, true
}

// Len returns the approximate number of items queued at priority p. The
// count is maintained alongside the lock-free queue rather than derived
// from it, since lockfree.Queue exposes no size accessor; it can be
// transiently stale under concurrent Push/Pull but never drifts
// permanently.
func (pq *PriorityQueue) Len(p Priority) int {
	return int(pq.lens[p].Load())
}

// Lengths returns the current length of every priority tier, indexed by
// Priority.
func (pq *PriorityQueue) Lengths() [NumPriorities]int {
	var out [NumPriorities]int
	for p := 0; p < NumPriorities; p++ {
		out[p] = pq.Len(Priority(p))
	}
	return out
}

// Empty reports whether every priority tier is currently empty.
func (pq *PriorityQueue) Empty() bool {
	for p := 0; p < NumPriorities; p++ {
		if pq.Len(Priority(p)) > 0 {
			return false
		}
	}
	return true
}
