package backlog

import (
	"container/heap"
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/chasedowdell/SprintSwarm/internal/index"
)

// Queue is a min-priority work queue backed by a similarity index namespace.
// It is safe for concurrent use.
type Queue struct {
	mu        sync.Mutex
	idx       index.Index
	namespace string
	items     itemHeap
	byID      map[string]*entry
	seq       uint64
}

// New creates an empty queue whose embeddings live in namespace of idx.
func New(idx index.Index, namespace string) *Queue {
	return &Queue{
		idx:       idx,
		namespace: namespace,
		byID:      make(map[string]*entry),
	}
}

// Namespace returns the index namespace bound to the queue.
func (q *Queue) Namespace() string {
	return q.namespace
}

func itemMetadata(item WorkItem) index.Metadata {
	return index.Metadata{
		"description": item.Description,
		"priority":    strconv.Itoa(item.Priority),
		"status":      item.Status.String(),
		"assignee":    item.AssigneeName(),
	}
}

// Insert registers embedding for item and then enqueues it. An item whose id
// is already queued is superseded and takes a fresh place in insertion order.
// If the index rejects the embedding the queue is left unchanged.
func (q *Queue) Insert(ctx context.Context, item WorkItem, embedding []float32) error {
	if item.ID == "" {
		item.ID = ItemID(item.Description)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	rec := index.Record{ID: item.ID, Vector: embedding, Metadata: itemMetadata(item)}
	if err := q.idx.Upsert(ctx, q.namespace, rec); err != nil {
		return fmt.Errorf("failed to index work item %s: %w", item.ID, err)
	}

	if old, ok := q.byID[item.ID]; ok {
		heap.Remove(&q.items, old.index)
	}
	q.pushLocked(item.clone())
	return nil
}

func (q *Queue) pushLocked(item WorkItem) {
	q.seq++
	e := &entry{item: item, seq: q.seq}
	heap.Push(&q.items, e)
	q.byID[item.ID] = e
}

// PopSmallest removes and returns the most urgent item. Among equal
// priorities the earliest inserted wins. The boolean is false when the
// queue is empty. The item's embedding stays in the index.
func (q *Queue) PopSmallest() (WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		return WorkItem{}, false
	}
	e := heap.Pop(&q.items).(*entry)
	delete(q.byID, e.item.ID)
	return e.item, true
}

// Peek returns the most urgent item without removing it.
func (q *Queue) Peek() (WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		return WorkItem{}, false
	}
	return q.items[0].item.clone(), true
}

// Len reports the number of live items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Remove deletes id from the index and from the ordering. Removing an id
// that is not queued only clears any stale embedding.
func (q *Queue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.idx.Delete(ctx, q.namespace, id); err != nil {
		return fmt.Errorf("failed to remove work item %s: %w", id, err)
	}
	if e, ok := q.byID[id]; ok {
		heap.Remove(&q.items, e.index)
		delete(q.byID, id)
	}
	return nil
}

// Reprioritize moves id to priority p. It reports false if id is not queued.
// The insertion order of the item is kept, so it sits behind earlier
// inserted items of the same priority.
func (q *Queue) Reprioritize(id string, p int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.byID[id]
	if !ok {
		return false
	}
	e.item.Priority = p
	heap.Fix(&q.items, e.index)
	return true
}

// SetStatus updates the status and assignee of a queued item.
// A nil assignee leaves the current one in place.
func (q *Queue) SetStatus(id string, status Status, assignee *string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.byID[id]
	if !ok {
		return false
	}
	e.item.Status = status
	if assignee != nil {
		name := *assignee
		e.item.Assignee = &name
	}
	return true
}

// Get returns the queued item with the given id.
func (q *Queue) Get(id string) (WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.byID[id]
	if !ok {
		return WorkItem{}, false
	}
	return e.item.clone(), true
}

// Smallest returns up to n items in pop order without removing them.
func (q *Queue) Smallest(n int) []WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	ordered := q.items.ordered()
	if n >= 0 && n < len(ordered) {
		ordered = ordered[:n]
	}
	out := make([]WorkItem, len(ordered))
	for i, e := range ordered {
		out[i] = e.item.clone()
	}
	return out
}

// Items returns every queued item in pop order.
func (q *Queue) Items() []WorkItem {
	return q.Smallest(-1)
}

// Filter returns the queued items, in pop order, for which keep reports true.
func (q *Queue) Filter(keep func(WorkItem) bool) []WorkItem {
	var out []WorkItem
	for _, item := range q.Items() {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// SearchSimilar returns the ids of the k embeddings closest to embedding.
// Ids may refer to items that have since been popped.
func (q *Queue) SearchSimilar(ctx context.Context, embedding []float32, k int) ([]index.Match, error) {
	matches, err := q.idx.Query(ctx, q.namespace, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", q.namespace, err)
	}
	return matches, nil
}

// SearchLive is SearchSimilar restricted to items that are still queued,
// in similarity order.
func (q *Queue) SearchLive(ctx context.Context, embedding []float32, k int) ([]WorkItem, error) {
	matches, err := q.SearchSimilar(ctx, embedding, k)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var out []WorkItem
	for _, m := range matches {
		if e, ok := q.byID[m.ID]; ok {
			out = append(out, e.item.clone())
		}
	}
	return out, nil
}

// restore enqueues items whose embeddings are already indexed.
// Items keep the relative order they are given in.
func (q *Queue) restore(items []WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range items {
		if old, ok := q.byID[item.ID]; ok {
			heap.Remove(&q.items, old.index)
		}
		q.pushLocked(item.clone())
	}
}
