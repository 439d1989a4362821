// Package index provides the similarity index that backs the work queues,
// the code-artifact corpus and the project context.
//
// An index stores vectors partitioned by namespace. Each backlog tier gets its
// own namespace, as does the code corpus.
package index

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Well known namespaces.
const (
	NamespaceBacklog       = "backlog"
	NamespaceSprintBacklog = "sprint_backlog"
	NamespaceCodebase      = "codebase"
	NamespaceContext       = "context"
)

var (
	// ErrIndexUnavailable is returned when the similarity backend cannot be reached
	// or fails to complete an operation.
	ErrIndexUnavailable = errors.New("similarity index unavailable")

	// ErrNotFound is returned by Fetch when no record exists for the id.
	ErrNotFound = errors.New("record not found")
)

// Metadata is the string-valued payload stored alongside a vector.
type Metadata map[string]string

// Record is one stored vector with its payload.
type Record struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Match is a single query result. Higher Score means more similar.
type Match struct {
	ID       string
	Score    float32
	Metadata Metadata
}

// Index defines the contract for similarity index operations.
type Index interface {
	// Upsert inserts or replaces the record under namespace.
	Upsert(ctx context.Context, namespace string, rec Record) error

	// Query returns up to k records of namespace ranked by similarity to vector.
	Query(ctx context.Context, namespace string, vector []float32, k int) ([]Match, error)

	// Fetch returns the record stored under id, or ErrNotFound.
	Fetch(ctx context.Context, namespace, id string) (*Record, error)

	// Delete removes the given ids from namespace. Missing ids are ignored.
	Delete(ctx context.Context, namespace string, ids ...string) error

	// Close releases any resources held by the index.
	Close() error
}

// unavailable wraps a backend failure so callers can match ErrIndexUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrIndexUnavailable, op, err)
}

// WithTimeout bounds every call on idx by d. Deadline expiry and any other
// backend failure surface as ErrIndexUnavailable. A zero d disables the bound.
func WithTimeout(idx Index, d time.Duration) Index {
	return &timeoutIndex{next: idx, timeout: d}
}

type timeoutIndex struct {
	next    Index
	timeout time.Duration
}

func (t *timeoutIndex) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.timeout)
}

func (t *timeoutIndex) Upsert(ctx context.Context, namespace string, rec Record) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return classify("upsert", t.next.Upsert(ctx, namespace, rec))
}

func (t *timeoutIndex) Query(ctx context.Context, namespace string, vector []float32, k int) ([]Match, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	matches, err := t.next.Query(ctx, namespace, vector, k)
	if err != nil {
		return nil, classify("query", err)
	}
	return matches, nil
}

func (t *timeoutIndex) Fetch(ctx context.Context, namespace, id string) (*Record, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	rec, err := t.next.Fetch(ctx, namespace, id)
	if err != nil {
		return nil, classify("fetch", err)
	}
	return rec, nil
}

func (t *timeoutIndex) Delete(ctx context.Context, namespace string, ids ...string) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return classify("delete", t.next.Delete(ctx, namespace, ids...))
}

func (t *timeoutIndex) Close() error {
	return t.next.Close()
}

func classify(op string, err error) error {
	if err == nil || errors.Is(err, ErrIndexUnavailable) || errors.Is(err, ErrNotFound) {
		return err
	}
	return unavailable(op, err)
}
