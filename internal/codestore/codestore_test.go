package codestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// blockingStore waits for cancellation on every call.
type blockingStore struct{}

func (blockingStore) GetContent(ctx context.Context, path string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingStore) Create(ctx context.Context, path, content string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingStore) Update(ctx context.Context, path, content string) error {
	<-ctx.Done()
	return ctx.Err()
}

// staticStore returns fixed errors.
type staticStore struct{ err error }

func (s staticStore) GetContent(context.Context, string) (string, error) { return "", s.err }
func (s staticStore) Create(context.Context, string, string) error       { return s.err }
func (s staticStore) Update(context.Context, string, string) error       { return s.err }

func TestWithTimeout_DeadlineIsUnavailable(t *testing.T) {
	store := WithTimeout(blockingStore{}, 10*time.Millisecond)

	_, err := store.GetContent(context.Background(), "a.py")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.ErrorIs(t, store.Create(context.Background(), "a.py", "x"), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Update(context.Background(), "a.py", "x"), ErrStoreUnavailable)
}

func TestWithTimeout_KeepsSentinels(t *testing.T) {
	for _, sentinel := range []error{ErrNotFound, ErrInvalidPath} {
		store := WithTimeout(staticStore{err: sentinel}, time.Second)
		_, err := store.GetContent(context.Background(), "a.py")
		assert.ErrorIs(t, err, sentinel)
		assert.False(t, errors.Is(err, ErrStoreUnavailable))
	}

	store := WithTimeout(staticStore{err: errors.New("disk full")}, 0)
	assert.ErrorIs(t, store.Create(context.Background(), "a.py", "x"), ErrStoreUnavailable)
	assert.NoError(t, WithTimeout(staticStore{}, 0).Update(context.Background(), "a.py", "x"))
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "create", ModeCreate.String())
	assert.Equal(t, "update", ModeUpdate.String())
	assert.Equal(t, "mode(7)", Mode(7).String())
}
