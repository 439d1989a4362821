package llm

import (
	"context"
	"fmt"

	"github.com/chasedowdell/SprintSwarm/internal/config"
)

// New builds the configured provider and wraps it in a Guard.
func New(ctx context.Context, cfg config.LLMConfig, timeouts config.TimeoutConfig) (*Guard, error) {
	switch cfg.Provider {
	case "openai":
		client := NewOpenAIClient(cfg.APIKey, cfg.CompletionModel, cfg.EmbeddingModel, cfg.Temperature)
		return NewGuard(client, client, timeouts.Oracle, cfg.RequestsPerSecond), nil

	case "gemini", "":
		completer, err := NewGeminiCompleter(ctx, cfg.APIKey, cfg.CompletionModel, cfg.Temperature)
		if err != nil {
			return nil, err
		}
		embedder, err := NewGeminiEmbedder(ctx, cfg.APIKey, cfg.EmbeddingModel)
		if err != nil {
			return nil, err
		}
		return NewGuard(completer, embedder, timeouts.Oracle, cfg.RequestsPerSecond), nil

	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
