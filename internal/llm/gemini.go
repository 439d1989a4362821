package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

// GeminiCompleter implements Completer on top of an ADK model.
type GeminiCompleter struct {
	llm         model.LLM
	temperature float32
}

// NewGeminiCompleter creates a completer for the named Gemini model.
func NewGeminiCompleter(ctx context.Context, apiKey, modelName string, temperature float32) (*GeminiCompleter, error) {
	llmModel, err := gemini.NewModel(ctx, modelName, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM model: %w", err)
	}
	return NewGeminiCompleterFromModel(llmModel, temperature), nil
}

// NewGeminiCompleterFromModel wraps an existing ADK model.
func NewGeminiCompleterFromModel(llm model.LLM, temperature float32) *GeminiCompleter {
	return &GeminiCompleter{llm: llm, temperature: temperature}
}

// Complete sends prompt as a single user turn.
func (g *GeminiCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return g.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, maxTokens)
}

// Chat sends the conversation. System messages become the system instruction
// and assistant turns are sent with the model role.
func (g *GeminiCompleter) Chat(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	req := &model.LLMRequest{
		Model: g.llm.Name(),
		Config: &genai.GenerateContentConfig{
			Temperature: genai.Ptr(g.temperature),
		},
	}
	if maxTokens > 0 {
		req.Config.MaxOutputTokens = int32(maxTokens)
	}
	if system := joinSystem(messages); system != "" {
		req.Config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			continue
		case RoleAssistant:
			req.Contents = append(req.Contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			req.Contents = append(req.Contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(req.Contents) == 0 {
		return "", errors.New("chat requires at least one user or assistant message")
	}

	var sb strings.Builder
	for resp, err := range g.llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return "", unavailable("generate content", err)
		}
		if resp == nil {
			continue
		}
		if resp.ErrorCode != "" {
			return "", unavailable("generate content", fmt.Errorf("%s: %s", resp.ErrorCode, resp.ErrorMessage))
		}
		if resp.Content == nil {
			continue
		}
		for _, part := range resp.Content.Parts {
			if part != nil && part.Text != "" && !part.Thought {
				sb.WriteString(part.Text)
			}
		}
	}
	return sb.String(), nil
}

// GeminiEmbedder implements Embedder using the genai embeddings API.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates an embedder for the named embedding model.
func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: modelName}, nil
}

// Embed generates an embedding for the given text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	if err != nil {
		return nil, unavailable("embed content", err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, unavailable("embed content", errors.New("no embedding returned"))
	}
	return resp.Embeddings[0].Values, nil
}

var (
	_ Completer = (*GeminiCompleter)(nil)
	_ Embedder  = (*GeminiEmbedder)(nil)
)
