// Package queue provides a value-based binary heap used for top-k selection.
package queue

// Item represents an item in the priority queue.
type Item struct {
	Node  uint32  // Node is the row identifier of the item.
	Score float32 // Score is the priority of the item in the queue.
}

// PriorityQueue is a binary heap over Items.
//
// Ordering is by Score with Node as a deterministic tiebreaker: in a max
// heap, higher scores win and equal scores prefer the lower node; the min
// heap mirrors that, so popping a max heap yields the exact ranking order
// callers return to users.
type PriorityQueue struct {
	isMaxHeap bool
	items     []Item
}

// NewMax creates a max-oriented priority queue with the given capacity hint.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{isMaxHeap: true, items: make([]Item, 0, max(capacity, 0))}
}

// NewMin creates a min-oriented priority queue with the given capacity hint.
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{isMaxHeap: false, items: make([]Item, 0, max(capacity, 0))}
}

// Len returns the number of items in the queue.
func (pq *PriorityQueue) Len() int {
	return len(pq.items)
}

// Top returns the top element of the heap without removing it.
func (pq *PriorityQueue) Top() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// Push inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue) Push(item Item) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// Pop removes and returns the top element while maintaining the heap invariant.
func (pq *PriorityQueue) Pop() (Item, bool) {
	n := len(pq.items)
	if n == 0 {
		return Item{}, false
	}
	root := pq.items[0]
	last := pq.items[n-1]
	pq.items[n-1] = Item{}
	pq.items = pq.items[:n-1]
	if n-1 > 0 {
		pq.items[0] = last
		pq.siftDown(0)
	}
	return root, true
}

func (pq *PriorityQueue) less(i, j int) bool {
	a, b := pq.items[i], pq.items[j]
	if a.Score != b.Score {
		if pq.isMaxHeap {
			return a.Score > b.Score
		}
		return a.Score < b.Score
	}
	// Equal scores: the max heap surfaces the lower node first.
	if pq.isMaxHeap {
		return a.Node < b.Node
	}
	return a.Node > b.Node
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
