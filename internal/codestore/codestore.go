// Package codestore defines the code store collaborator and a git-backed
// implementation.
package codestore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the requested file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrStoreUnavailable is returned when the store cannot complete an operation.
	ErrStoreUnavailable = errors.New("code store unavailable")

	// ErrInvalidPath is returned for paths that leave the repository.
	ErrInvalidPath = errors.New("invalid file path")
)

// Mode selects how a change request is applied.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeUpdate:
		return "update"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ChangeRequest is a single file mutation submitted to the store.
type ChangeRequest struct {
	FilePath string
	Content  string
	Mode     Mode
}

// Store is the contract every code store satisfies. Each successful
// Create or Update is committed.
type Store interface {
	// GetContent returns the file content or ErrNotFound.
	GetContent(ctx context.Context, path string) (string, error)

	// Create writes a new file.
	Create(ctx context.Context, path, content string) error

	// Update replaces the content of an existing file.
	Update(ctx context.Context, path, content string) error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrStoreUnavailable, op, err)
}

// WithTimeout bounds every call on s by d. Deadline expiry surfaces as
// ErrStoreUnavailable. A zero d disables the bound.
func WithTimeout(s Store, d time.Duration) Store {
	return &timeoutStore{next: s, timeout: d}
}

type timeoutStore struct {
	next    Store
	timeout time.Duration
}

func (t *timeoutStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.timeout)
}

func (t *timeoutStore) GetContent(ctx context.Context, path string) (string, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	content, err := t.next.GetContent(ctx, path)
	if err != nil {
		return "", classify("get content", err)
	}
	return content, nil
}

func (t *timeoutStore) Create(ctx context.Context, path, content string) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return classify("create", t.next.Create(ctx, path, content))
}

func (t *timeoutStore) Update(ctx context.Context, path, content string) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return classify("update", t.next.Update(ctx, path, content))
}

func classify(op string, err error) error {
	switch {
	case err == nil,
		errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidPath):
		return err
	default:
		return unavailable(op, err)
	}
}
