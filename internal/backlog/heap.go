package backlog

import "container/heap"

// entry is a heap slot. seq records insertion order and breaks priority ties.
type entry struct {
	item  WorkItem
	seq   uint64
	index int
}

// itemHeap implements heap.Interface ordered by (priority, seq).
type itemHeap []*entry

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].item.Priority != h[j].item.Priority {
		return h[i].item.Priority < h[j].item.Priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// ordered returns the entries in pop order without disturbing h.
func (h itemHeap) ordered() []*entry {
	cp := make(itemHeap, len(h))
	for i, e := range h {
		cp[i] = &entry{item: e.item, seq: e.seq, index: i}
	}
	out := make([]*entry, 0, len(cp))
	for cp.Len() > 0 {
		out = append(out, heap.Pop(&cp).(*entry))
	}
	return out
}
