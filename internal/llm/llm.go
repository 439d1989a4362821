// Package llm provides wrapper interfaces and implementations for the
// completion and embedding oracles.
//
// Oracles are opaque and possibly non-deterministic. Callers only rely on
// the error contract: every transport, quota or deadline failure is reported
// as ErrOracleUnavailable.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrOracleUnavailable is returned when an oracle cannot produce a reply.
var ErrOracleUnavailable = errors.New("oracle unavailable")

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    Role
	Content string
}

// Completer provides text completion capability.
type Completer interface {
	// Complete returns the oracle's reply to a single prompt.
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)

	// Chat returns the oracle's reply to a conversation.
	Chat(ctx context.Context, messages []Message, maxTokens int) (string, error)
}

// Embedder provides text embedding capability.
type Embedder interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Oracle bundles both capabilities, as every provider offers them together.
type Oracle interface {
	Completer
	Embedder
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrOracleUnavailable, op, err)
}

// joinSystem concatenates every system message.
func joinSystem(messages []Message) string {
	var parts []string
	for _, m := range messages {
		if m.Role == RoleSystem && m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
