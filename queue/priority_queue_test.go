package queue

import "testing"

func TestPushPull(t *testing.T) {
	pq := NewPriorityQueue()
	pq.Push(Critical, "a")
	pq.Push(Low, "b")

	var cursor uint32
	item, ok := pq.Pull(&cursor)
	if !ok || item != "a" {
		t.Fatalf("Pull() = (%v, %v), want (a, true)", item, ok)
	}
	item, ok = pq.Pull(&cursor)
	if !ok || item != "b" {
		t.Fatalf("Pull() = (%v, %v), want (b, true)", item, ok)
	}
	if _, ok := pq.Pull(&cursor); ok {
		t.Fatalf("Pull() on empty queue returned ok=true")
	}
}

func TestPullPrefersHigherPriority(t *testing.T) {
	pq := NewPriorityQueue()
	pq.Push(Low, "low")
	pq.Push(Critical, "critical")

	var cursor uint32
	item, ok := pq.Pull(&cursor)
	if !ok || item != "critical" {
		t.Fatalf("Pull() = (%v, %v), want (critical, true): weighted table should favor Critical", item, ok)
	}
}

func TestWeightedShareApproximatesTable(t *testing.T) {
	pq := NewPriorityQueue()
	const perTier = 2000
	for i := 0; i < perTier; i++ {
		pq.Push(Critical, "c")
		pq.Push(High, "h")
		pq.Push(Normal, "n")
		pq.Push(Low, "l")
	}

	counts := map[any]int{}
	var cursor uint32
	for {
		item, ok := pq.Pull(&cursor)
		if !ok {
			break
		}
		counts[item]++
	}

	total := counts["c"] + counts["h"] + counts["n"] + counts["l"]
	if total != perTier*4 {
		t.Fatalf("drained %d items, want %d", total, perTier*4)
	}
	// Critical should clearly outnumber Low given the 8:1 weighting, even
	// allowing for the fact both tiers are equally well-stocked here.
	if counts["c"] <= counts["l"] {
		t.Fatalf("Critical count %d did not exceed Low count %d under equal supply", counts["c"], counts["l"])
	}
}

func TestLenTracksPushAndPop(t *testing.T) {
	pq := NewPriorityQueue()
	pq.Push(Normal, "x")
	pq.Push(Normal, "y")
	if got := pq.Len(Normal); got != 2 {
		t.Fatalf("Len(Normal) = %d, want 2", got)
	}
	pq.TryPop(Normal)
	if got := pq.Len(Normal); got != 1 {
		t.Fatalf("Len(Normal) = %d after one pop, want 1", got)
	}
}

func TestEmpty(t *testing.T) {
	pq := NewPriorityQueue()
	if !pq.Empty() {
		t.Fatalf("Empty() = false on a freshly constructed queue")
	}
	pq.Push(High, "x")
	if pq.Empty() {
		t.Fatalf("Empty() = true after a push")
	}
}
