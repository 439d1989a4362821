package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/chasedowdell/SprintSwarm/internal/index"
	"github.com/chasedowdell/SprintSwarm/internal/llm"
)

// Note is a free-text observation kept for later sessions.
type Note struct {
	ID      string
	Text    string
	Source  string
	SavedAt time.Time
	Score   float32
}

// Notes stores notes as embedded records of one index namespace.
type Notes struct {
	idx       index.Index
	embedder  llm.Embedder
	namespace string
	now       func() time.Time
}

// NewNotes creates a note store over namespace of idx.
func NewNotes(idx index.Index, embedder llm.Embedder, namespace string) *Notes {
	return &Notes{idx: idx, embedder: embedder, namespace: namespace, now: time.Now}
}

// Save embeds text and stores it under id, replacing any earlier note with the same id.
func (n *Notes) Save(ctx context.Context, id, text, source string) error {
	vec, err := n.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed note: %w", err)
	}
	rec := index.Record{
		ID:     id,
		Vector: vec,
		Metadata: index.Metadata{
			"text":     text,
			"source":   source,
			"saved_at": n.now().UTC().Format(time.RFC3339),
		},
	}
	if err := n.idx.Upsert(ctx, n.namespace, rec); err != nil {
		return fmt.Errorf("failed to store note %s: %w", id, err)
	}
	return nil
}

// Search returns the k notes most similar to query.
func (n *Notes) Search(ctx context.Context, query string, k int) ([]Note, error) {
	vec, err := n.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	matches, err := n.idx.Query(ctx, n.namespace, vec, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search notes: %w", err)
	}
	notes := make([]Note, 0, len(matches))
	for _, m := range matches {
		savedAt, _ := time.Parse(time.RFC3339, m.Metadata["saved_at"])
		notes = append(notes, Note{
			ID:      m.ID,
			Text:    m.Metadata["text"],
			Source:  m.Metadata["source"],
			SavedAt: savedAt,
			Score:   m.Score,
		})
	}
	return notes, nil
}
