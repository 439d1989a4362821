package llm

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// Guard bounds every oracle call by a timeout and a shared request rate.
// Deadline expiry, limiter refusal and provider failures all surface as
// ErrOracleUnavailable.
type Guard struct {
	completer Completer
	embedder  Embedder
	timeout   time.Duration
	limiter   *rate.Limiter
}

// NewGuard wraps the given oracles. A zero timeout disables the bound and a
// non-positive requestsPerSecond disables rate limiting.
func NewGuard(c Completer, e Embedder, timeout time.Duration, requestsPerSecond float64) *Guard {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &Guard{completer: c, embedder: e, timeout: timeout, limiter: limiter}
}

func (g *Guard) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	var cancel context.CancelFunc
	if g.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		cancel()
		return nil, nil, unavailable("wait for rate limiter", err)
	}
	return ctx, cancel, nil
}

func (g *Guard) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	ctx, cancel, err := g.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	reply, err := g.completer.Complete(ctx, prompt, maxTokens)
	if err != nil {
		return "", classify("complete", err)
	}
	return reply, nil
}

func (g *Guard) Chat(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	ctx, cancel, err := g.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	reply, err := g.completer.Chat(ctx, messages, maxTokens)
	if err != nil {
		return "", classify("chat", err)
	}
	return reply, nil
}

func (g *Guard) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel, err := g.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	vec, err := g.embedder.Embed(ctx, text)
	if err != nil {
		return nil, classify("embed", err)
	}
	return vec, nil
}

func classify(op string, err error) error {
	if errors.Is(err, ErrOracleUnavailable) {
		return err
	}
	return unavailable(op, err)
}

var _ Oracle = (*Guard)(nil)
