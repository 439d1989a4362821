package developer

import (
	"context"
	"errors"
	"fmt"

	"github.com/chasedowdell/SprintSwarm/internal/codestore"
)

// Emitter submits change requests to the code store. It does not retry.
type Emitter struct {
	store codestore.Store
}

// NewEmitter creates an Emitter over store.
func NewEmitter(store codestore.Store) *Emitter {
	return &Emitter{store: store}
}

// Emit applies req. Failures other than an invalid path are reported as
// codestore.ErrStoreUnavailable.
func (e *Emitter) Emit(ctx context.Context, req codestore.ChangeRequest) error {
	var err error
	switch req.Mode {
	case codestore.ModeCreate:
		err = e.store.Create(ctx, req.FilePath, req.Content)
	case codestore.ModeUpdate:
		err = e.store.Update(ctx, req.FilePath, req.Content)
	default:
		return fmt.Errorf("unknown change mode %d for %s", req.Mode, req.FilePath)
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, codestore.ErrStoreUnavailable) || errors.Is(err, codestore.ErrInvalidPath) {
		return fmt.Errorf("failed to %s %s: %w", req.Mode, req.FilePath, err)
	}
	return fmt.Errorf("%w: failed to %s %s: %w", codestore.ErrStoreUnavailable, req.Mode, req.FilePath, err)
}
