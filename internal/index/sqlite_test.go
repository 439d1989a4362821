package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestSQLite(t *testing.T) *SQLiteIndex {
	t.Helper()
	ctx := context.Background()

	idx, err := NewSQLiteIndex(ctx, ":memory:")
	if err != nil {
		t.Fatalf("failed to create SQLite index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	if err := idx.InitSchema(ctx); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	return idx
}

// TestNewSQLiteIndex tests SQLite index creation and initialization.
func TestNewSQLiteIndex(t *testing.T) {
	idx := newTestSQLite(t)

	// InitSchema is idempotent
	if err := idx.InitSchema(context.Background()); err != nil {
		t.Fatalf("second InitSchema failed: %v", err)
	}
}

func TestSQLiteIndex_Contract(t *testing.T) {
	exerciseIndex(t, newTestSQLite(t))
}

// TestSQLiteIndex_SkipsDimensionMismatch verifies that records of another
// dimension are ignored rather than scored.
func TestSQLiteIndex_SkipsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := newTestSQLite(t)

	if err := idx.Upsert(ctx, NamespaceCodebase, Record{ID: "small", Vector: testVector(8, 0)}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	if err := idx.Upsert(ctx, NamespaceCodebase, Record{ID: "large", Vector: testVector(16, 0)}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}

	matches, err := idx.Query(ctx, NamespaceCodebase, testVector(16, 0), 5)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "large" {
		t.Errorf("expected only 'large', got %+v", matches)
	}
}

func TestSQLiteIndex_ZeroK(t *testing.T) {
	ctx := context.Background()
	idx := newTestSQLite(t)

	if err := idx.Upsert(ctx, NamespaceBacklog, Record{ID: "a", Vector: testVector(4, 0)}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	matches, err := idx.Query(ctx, NamespaceBacklog, testVector(4, 0), 0)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches for k=0, got %d", len(matches))
	}
}

// TestSQLiteIndex_PersistsToFile reopens a file database and expects the record back.
func TestSQLiteIndex_PersistsToFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := Open(ctx, BackendSQLite, path)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	if err := idx.Upsert(ctx, NamespaceContext, Record{ID: "vision_context", Vector: testVector(4, 0), Metadata: Metadata{"title": "x"}}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	idx, err = Open(ctx, BackendSQLite, path)
	if err != nil {
		t.Fatalf("failed to reopen: %v", err)
	}
	defer idx.Close()

	rec, err := idx.Fetch(ctx, NamespaceContext, "vision_context")
	if err != nil {
		t.Fatalf("failed to fetch: %v", err)
	}
	if rec.Metadata["title"] != "x" {
		t.Errorf("expected title 'x', got %q", rec.Metadata["title"])
	}
}

func TestSQLiteIndex_ClosedDatabaseIsUnavailable(t *testing.T) {
	ctx := context.Background()
	idx, err := NewSQLiteIndex(ctx, ":memory:")
	if err != nil {
		t.Fatalf("failed to create SQLite index: %v", err)
	}
	if err := idx.InitSchema(ctx); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	idx.Close()

	err = idx.Upsert(ctx, NamespaceBacklog, Record{ID: "a", Vector: testVector(4, 0)})
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Errorf("expected ErrIndexUnavailable, got %v", err)
	}
}
