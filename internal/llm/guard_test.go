package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubOracle answers every call with fixed values and counts invocations.
type stubOracle struct {
	reply string
	vec   []float32
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (s *stubOracle) wait(ctx context.Context) error {
	s.calls.Add(1)
	if s.delay == 0 {
		return nil
	}
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *stubOracle) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	return s.reply, s.err
}

func (s *stubOracle) Chat(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	return s.reply, s.err
}

func (s *stubOracle) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.vec, s.err
}

func TestGuard_PassesThrough(t *testing.T) {
	stub := &stubOracle{reply: "ok", vec: []float32{1, 2}}
	g := NewGuard(stub, stub, time.Second, 0)

	reply, err := g.Complete(context.Background(), "p", 10)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)

	reply, err = g.Chat(context.Background(), []Message{{Role: RoleUser, Content: "p"}}, 10)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)

	vec, err := g.Embed(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)
	assert.Equal(t, int32(3), stub.calls.Load())
}

func TestGuard_TimeoutIsUnavailable(t *testing.T) {
	stub := &stubOracle{reply: "late", delay: time.Second}
	g := NewGuard(stub, stub, 10*time.Millisecond, 0)

	_, err := g.Complete(context.Background(), "p", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOracleUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = g.Embed(context.Background(), "p")
	assert.ErrorIs(t, err, ErrOracleUnavailable)
}

func TestGuard_ProviderErrorIsUnavailable(t *testing.T) {
	stub := &stubOracle{err: errors.New("boom")}
	g := NewGuard(stub, stub, 0, 0)

	_, err := g.Chat(context.Background(), nil, 10)
	assert.ErrorIs(t, err, ErrOracleUnavailable)
}

func TestGuard_AlreadyUnavailableIsNotDoubleWrapped(t *testing.T) {
	stub := &stubOracle{err: unavailable("embed content", errors.New("quota"))}
	g := NewGuard(stub, stub, 0, 0)

	_, err := g.Embed(context.Background(), "p")
	require.ErrorIs(t, err, ErrOracleUnavailable)
	assert.Equal(t, stub.err, err)
}

func TestGuard_RateLimit(t *testing.T) {
	stub := &stubOracle{reply: "ok"}
	g := NewGuard(stub, stub, 0, 20)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := g.Complete(context.Background(), "p", 1)
		require.NoError(t, err)
	}
	// Burst of one at 20/s: the second and third calls wait about 50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestGuard_CancelledWhileWaiting(t *testing.T) {
	stub := &stubOracle{reply: "ok"}
	g := NewGuard(stub, stub, 0, 0.001)

	// First call consumes the only token.
	_, err := g.Complete(context.Background(), "p", 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Complete(ctx, "p", 1)
	assert.ErrorIs(t, err, ErrOracleUnavailable)
	assert.Equal(t, int32(1), stub.calls.Load())
}
