package queue

import "slices"

// TopK keeps the k best items seen so far. The worst retained item sits at
// the top of the underlying heap so it can be evicted in O(log k).
type TopK struct {
	k              int
	higherIsBetter bool
	pq             *PriorityQueue
}

// maxInitialCapacity bounds the preallocated heap storage; larger k grow it
// on demand.
const maxInitialCapacity = 1024

// NewSmallestK keeps the k items with the smallest priority (distances).
func NewSmallestK(k int) *TopK {
	return &TopK{k: k, pq: NewMax(min(max(k, 0), maxInitialCapacity))}
}

// NewLargestK keeps the k items with the largest priority (similarities).
func NewLargestK(k int) *TopK {
	return &TopK{k: k, higherIsBetter: true, pq: NewMin(min(max(k, 0), maxInitialCapacity))}
}

// Len returns the number of retained items.
func (t *TopK) Len() int { return t.pq.Len() }

// Full reports whether k items are retained.
func (t *TopK) Full() bool { return t.pq.Len() >= t.k }

// Worst returns the worst retained item.
func (t *TopK) Worst() (Item, bool) { return t.pq.TopItem() }

// Offer adds item if it beats the current worst or the collector is not full.
// It reports whether the item was retained.
func (t *TopK) Offer(item Item) bool {
	if t.k <= 0 {
		return false
	}
	if !t.Full() {
		t.pq.PushItem(item)
		return true
	}
	worst, _ := t.pq.TopItem()
	if !t.better(item.Priority, worst.Priority) {
		return false
	}
	t.pq.ReplaceTop(item)
	return true
}

func (t *TopK) better(a, b float64) bool {
	if t.higherIsBetter {
		return a > b
	}
	return a < b
}

// Sorted returns the retained items best-first. The collector is left intact.
func (t *TopK) Sorted() []Item {
	out := slices.Clone(t.pq.items)
	slices.SortStableFunc(out, func(a, b Item) int {
		switch {
		case t.better(a.Priority, b.Priority):
			return -1
		case t.better(b.Priority, a.Priority):
			return 1
		}
		return 0
	})
	return out
}
