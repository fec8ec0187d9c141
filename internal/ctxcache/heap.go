package ctxcache

import "time"

// entry is one cached detection context.
type entry[V any] struct {
	taskID    string
	imageHash string
	expireAt  time.Time
	value     V

	seq   uint64 // insertion order, breaks expire_at ties
	index int    // position in the heap, maintained by expiryHeap
}

// expiryHeap implements heap.Interface with the earliest expire_at on top.
type expiryHeap[V any] []*entry[V]

func (h expiryHeap[V]) Len() int { return len(h) }

func (h expiryHeap[V]) Less(i, j int) bool {
	if !h[i].expireAt.Equal(h[j].expireAt) {
		return h[i].expireAt.Before(h[j].expireAt)
	}
	return h[i].seq < h[j].seq
}

func (h expiryHeap[V]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expiryHeap[V]) Push(x any) {
	e := x.(*entry[V])
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *expiryHeap[V]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
