// Package timer implements the indexed min-heap idle timer (spec
// component D): O(log n) add/update/cancel keyed by connection id, with
// an id -> index map enabling arbitrary-element updates. The sift
// algorithms are grounded on original_source's HeapTimer (siftup_/
// siftdown_/swapNode_/del_), expressed here over container/heap.Interface
// per Go idiom rather than hand-rolled sift functions.
package timer

import (
	"container/heap"
	"time"
)

// Callback runs when a timer fires or is force-expired by Tick.
type Callback func()

type node struct {
	id       int
	deadline time.Time
	cb       Callback
}

// innerHeap implements heap.Interface and keeps ref in sync on every
// Swap, which is how container/heap reports every reordering it performs
// during Push/Pop/Fix.
type innerHeap struct {
	nodes []*node
	ref   map[int]int // id -> index in nodes
}

func (h *innerHeap) Len() int { return len(h.nodes) }
func (h *innerHeap) Less(i, j int) bool {
	return h.nodes[i].deadline.Before(h.nodes[j].deadline)
}
func (h *innerHeap) Swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
	h.ref[h.nodes[i].id] = i
	h.ref[h.nodes[j].id] = j
}
func (h *innerHeap) Push(x any) {
	n := x.(*node)
	h.ref[n.id] = len(h.nodes)
	h.nodes = append(h.nodes, n)
}
func (h *innerHeap) Pop() any {
	old := h.nodes
	n := len(old)
	last := old[n-1]
	h.nodes = old[:n-1]
	delete(h.ref, last.id)
	return last
}

// Timer is the indexed min-heap timer. It is not safe for concurrent use;
// spec.md §5 restricts it to the reactor thread.
type Timer struct {
	h *innerHeap
}

// New returns an empty Timer.
func New() *Timer {
	return &Timer{h: &innerHeap{ref: make(map[int]int)}}
}

// Add arms a deadline for id. If id is already tracked, its deadline and
// callback are overwritten in place (sift down then up, mirroring
// addHeapTimer's existing-node branch) rather than being removed and
// reinserted.
func (t *Timer) Add(id int, timeout time.Duration, cb Callback) {
	if idx, ok := t.h.ref[id]; ok {
		t.h.nodes[idx].deadline = time.Now().Add(timeout)
		t.h.nodes[idx].cb = cb
		heap.Fix(t.h, idx)
		return
	}
	heap.Push(t.h, &node{id: id, deadline: time.Now().Add(timeout), cb: cb})
}

// Update overwrites id's deadline without touching its callback. It is a
// no-op if id is not tracked.
func (t *Timer) Update(id int, timeout time.Duration) {
	idx, ok := t.h.ref[id]
	if !ok {
		return
	}
	t.h.nodes[idx].deadline = time.Now().Add(timeout)
	heap.Fix(t.h, idx)
}

// Cancel removes id's timer without invoking its callback. No-op if id is
// not tracked.
func (t *Timer) Cancel(id int) {
	idx, ok := t.h.ref[id]
	if !ok {
		return
	}
	heap.Remove(t.h, idx)
}

// Fire invokes id's callback, then cancels it without re-invoking.
// No-op if id is not tracked.
func (t *Timer) Fire(id int) {
	idx, ok := t.h.ref[id]
	if !ok {
		return
	}
	if cb := t.h.nodes[idx].cb; cb != nil {
		cb()
	}
	t.Cancel(id)
}

// Len reports the number of armed timers.
func (t *Timer) Len() int { return t.h.Len() }

// Tick fires every node whose deadline has passed and returns the number
// of milliseconds until the new root fires, or -1 if no timers remain
// (the reactor interprets -1 as "block indefinitely" in the demuxer
// wait). Firing happens root-first, matching handle_expired_event.
func (t *Timer) Tick() int {
	now := time.Now()
	for t.h.Len() > 0 {
		root := t.h.nodes[0]
		if root.deadline.After(now) {
			break
		}
		cb := root.cb
		heap.Remove(t.h, 0)
		if cb != nil {
			cb()
		}
	}
	if t.h.Len() == 0 {
		return -1
	}
	remaining := time.Until(t.h.nodes[0].deadline).Milliseconds()
	if remaining < 0 {
		remaining = 0
	}
	return int(remaining)
}
