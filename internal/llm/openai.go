package llm

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Completer and Embedder on the OpenAI API.
type OpenAIClient struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
}

// NewOpenAIClient creates a client using the default OpenAI endpoint.
func NewOpenAIClient(apiKey, completionModel, embeddingModel string, temperature float32) *OpenAIClient {
	return NewOpenAIClientWithConfig(openai.DefaultConfig(apiKey), completionModel, embeddingModel, temperature)
}

// NewOpenAIClientWithConfig creates a client for a custom endpoint, such as a
// compatible gateway or a test server.
func NewOpenAIClientWithConfig(cfg openai.ClientConfig, completionModel, embeddingModel string, temperature float32) *OpenAIClient {
	return &OpenAIClient{
		client:         openai.NewClientWithConfig(cfg),
		model:          completionModel,
		embeddingModel: embeddingModel,
		temperature:    temperature,
	}
}

// Complete sends prompt as a single user message.
func (o *OpenAIClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return o.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, maxTokens)
}

// Chat sends the conversation and returns the first choice.
func (o *OpenAIClient) Chat(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
	}
	if maxTokens > 0 {
		req.MaxTokens = maxTokens
	}
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", unavailable("create chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", unavailable("create chat completion", errors.New("no choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed generates an embedding for the given text.
func (o *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(o.embeddingModel),
	})
	if err != nil {
		return nil, unavailable("create embeddings", err)
	}
	if len(resp.Data) == 0 {
		return nil, unavailable("create embeddings", errors.New("no embedding returned"))
	}
	return resp.Data[0].Embedding, nil
}

var _ Oracle = (*OpenAIClient)(nil)
