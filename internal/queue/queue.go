// Package queue provides binary heaps keyed by float64 priority, plus a
// bounded top-k collector built on them.
package queue

import "container/heap"

// Compile time check to ensure PriorityQueue satisfies the heap interface.
var _ heap.Interface = (*PriorityQueue)(nil)

// Item is a node ordinal paired with its priority.
type Item struct {
	Node     uint32
	Priority float64
}

// PriorityQueue is a value-based binary heap of Items.
type PriorityQueue struct {
	isMaxHeap bool
	items     []Item
}

// NewMin returns a heap with the smallest priority at the top.
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{items: make([]Item, 0, capacity)}
}

// NewMax returns a heap with the largest priority at the top.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{isMaxHeap: true, items: make([]Item, 0, capacity)}
}

// TopItem returns the top element of the heap.
func (pq *PriorityQueue) TopItem() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// PushItem inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue) PushItem(item Item) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// PopItem removes and returns the top element.
func (pq *PriorityQueue) PopItem() (Item, bool) {
	n := len(pq.items)
	if n == 0 {
		return Item{}, false
	}
	root := pq.items[0]
	last := pq.items[n-1]
	pq.items = pq.items[:n-1]
	if n-1 > 0 {
		pq.items[0] = last
		pq.siftDown(0)
	}
	return root, true
}

// ReplaceTop overwrites the top element and restores the heap invariant.
func (pq *PriorityQueue) ReplaceTop(item Item) {
	if len(pq.items) == 0 {
		pq.PushItem(item)
		return
	}
	pq.items[0] = item
	pq.siftDown(0)
}

func (pq *PriorityQueue) less(i, j int) bool {
	if pq.isMaxHeap {
		return pq.items[i].Priority > pq.items[j].Priority
	}
	return pq.items[i].Priority < pq.items[j].Priority
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !pq.less(i, p) {
			return
		}
		pq.items[i], pq.items[p] = pq.items[p], pq.items[i]
		i = p
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && pq.less(r, l) {
			best = r
		}
		if !pq.less(best, i) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}

// heap.Interface, for callers that prefer container/heap.

func (pq *PriorityQueue) Len() int           { return len(pq.items) }
func (pq *PriorityQueue) Less(i, j int) bool { return pq.less(i, j) }
func (pq *PriorityQueue) Swap(i, j int)      { pq.items[i], pq.items[j] = pq.items[j], pq.items[i] }

func (pq *PriorityQueue) Push(x any) { pq.items = append(pq.items, x.(Item)) }

func (pq *PriorityQueue) Pop() any {
	n := len(pq.items)
	item := pq.items[n-1]
	pq.items = pq.items[:n-1]
	return item
}
