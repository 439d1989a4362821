package index

import (
	"context"
	"errors"
	"testing"
)

// testVector builds a deterministic vector of the given dimension. Vectors
// with the same seed are identical; different seeds point in different directions.
func testVector(dim int, seed int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		if seed%2 == 0 {
			v[i] = float32(i+seed) / float32(dim)
		} else {
			v[i] = float32(dim-i+seed) / float32(dim)
		}
	}
	return v
}

// exerciseIndex runs the behaviour every backend must share.
func exerciseIndex(t *testing.T, idx Index) {
	t.Helper()
	ctx := context.Background()
	ns := "contract_" + t.Name()

	near := testVector(32, 0)
	far := testVector(32, 1)

	if err := idx.Upsert(ctx, ns, Record{ID: "near", Vector: near, Metadata: Metadata{"description": "close match"}}); err != nil {
		t.Fatalf("failed to upsert near: %v", err)
	}
	if err := idx.Upsert(ctx, ns, Record{ID: "far", Vector: far}); err != nil {
		t.Fatalf("failed to upsert far: %v", err)
	}
	// Other namespaces must not leak into results.
	if err := idx.Upsert(ctx, ns+"_other", Record{ID: "stranger", Vector: near}); err != nil {
		t.Fatalf("failed to upsert stranger: %v", err)
	}

	matches, err := idx.Query(ctx, ns, near, 10)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "near" {
		t.Errorf("expected first match to be 'near', got '%s'", matches[0].ID)
	}
	if matches[0].Score < matches[1].Score {
		t.Errorf("expected descending scores, got %f < %f", matches[0].Score, matches[1].Score)
	}
	if matches[0].Metadata["description"] != "close match" {
		t.Errorf("expected metadata to round trip, got %v", matches[0].Metadata)
	}

	limited, err := idx.Query(ctx, ns, near, 1)
	if err != nil {
		t.Fatalf("failed to query with limit: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 match with k=1, got %d", len(limited))
	}

	// Upsert replaces in place.
	if err := idx.Upsert(ctx, ns, Record{ID: "near", Vector: near, Metadata: Metadata{"description": "updated"}}); err != nil {
		t.Fatalf("failed to re-upsert near: %v", err)
	}
	rec, err := idx.Fetch(ctx, ns, "near")
	if err != nil {
		t.Fatalf("failed to fetch: %v", err)
	}
	if rec.Metadata["description"] != "updated" {
		t.Errorf("expected updated metadata, got %v", rec.Metadata)
	}
	if len(rec.Vector) != len(near) {
		t.Errorf("expected vector of %d dims, got %d", len(near), len(rec.Vector))
	}

	if err := idx.Delete(ctx, ns, "near", "missing"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, err := idx.Fetch(ctx, ns, "near"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	matches, err = idx.Query(ctx, ns, near, 10)
	if err != nil {
		t.Fatalf("failed to query after delete: %v", err)
	}
	for _, m := range matches {
		if m.ID == "near" {
			t.Errorf("deleted id returned by query")
		}
	}

	if err := idx.Delete(ctx, ns, "far"); err != nil {
		t.Fatalf("failed to clean up: %v", err)
	}
	if err := idx.Delete(ctx, ns+"_other", "stranger"); err != nil {
		t.Fatalf("failed to clean up: %v", err)
	}
}
