package index

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryIndex is an in-process Index. It is used by tests and by the
// "memory" backend for throwaway runs.
type MemoryIndex struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]Record
}

// NewMemoryIndex creates an empty MemoryIndex.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{namespaces: make(map[string]map[string]Record)}
}

func (m *MemoryIndex) Upsert(_ context.Context, namespace string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]Record)
		m.namespaces[namespace] = ns
	}
	ns[rec.ID] = cloneRecord(rec)
	return nil
}

func (m *MemoryIndex) Query(_ context.Context, namespace string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Match, 0, len(m.namespaces[namespace]))
	for id, rec := range m.namespaces[namespace] {
		if len(rec.Vector) == 0 || len(rec.Vector) != len(vector) {
			continue
		}
		results = append(results, Match{
			ID:       id,
			Score:    cosineSimilarity(vector, rec.Vector),
			Metadata: cloneMetadata(rec.Metadata),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results[:min(k, len(results))], nil
}

func (m *MemoryIndex) Fetch(_ context.Context, namespace, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.namespaces[namespace][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", namespace, id, ErrNotFound)
	}
	out := cloneRecord(rec)
	return &out, nil
}

func (m *MemoryIndex) Delete(_ context.Context, namespace string, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.namespaces[namespace], id)
	}
	return nil
}

// Len reports how many records namespace holds.
func (m *MemoryIndex) Len(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.namespaces[namespace])
}

func (m *MemoryIndex) Close() error {
	return nil
}

func cloneRecord(rec Record) Record {
	out := Record{ID: rec.ID, Metadata: cloneMetadata(rec.Metadata)}
	if rec.Vector != nil {
		out.Vector = append([]float32(nil), rec.Vector...)
	}
	return out
}

func cloneMetadata(m Metadata) Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var _ Index = (*MemoryIndex)(nil)
