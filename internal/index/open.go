package index

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendWeaviate = "weaviate"
	BackendMemory   = "memory"
)

// Open connects to the configured backend and makes sure its schema exists.
// For sqlite, url is a file path or ":memory:".
func Open(ctx context.Context, backend, url string) (Index, error) {
	switch backend {
	case BackendSQLite:
		idx, err := NewSQLiteIndex(ctx, url)
		if err != nil {
			return nil, err
		}
		if err := idx.InitSchema(ctx); err != nil {
			idx.Close()
			return nil, err
		}
		return idx, nil

	case BackendPostgres:
		idx, err := NewPostgresIndex(ctx, url)
		if err != nil {
			return nil, err
		}
		if err := idx.InitSchema(ctx); err != nil {
			idx.Close()
			return nil, err
		}
		return idx, nil

	case BackendWeaviate:
		idx, err := NewWeaviateIndex(url)
		if err != nil {
			return nil, err
		}
		if err := idx.InitSchema(ctx); err != nil {
			return nil, err
		}
		return idx, nil

	case BackendMemory:
		return NewMemoryIndex(), nil

	default:
		return nil, fmt.Errorf("unknown index backend %q", backend)
	}
}
