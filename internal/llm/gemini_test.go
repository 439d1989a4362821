package llm

import (
	"context"
	"errors"
	"iter"
	"testing"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// mockLLM is a mock implementation of model.LLM for testing
type mockLLM struct {
	responses []*model.LLMResponse
	err       error
	lastReq   *model.LLMRequest
}

func (m *mockLLM) Name() string { return "mock-model" }

func (m *mockLLM) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	m.lastReq = req
	return func(yield func(*model.LLMResponse, error) bool) {
		if m.err != nil {
			yield(nil, m.err)
			return
		}
		for _, r := range m.responses {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func textResponse(parts ...string) *model.LLMResponse {
	content := &genai.Content{Role: string(genai.RoleModel)}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &model.LLMResponse{Content: content}
}

func TestGeminiCompleter_Complete(t *testing.T) {
	llm := &mockLLM{responses: []*model.LLMResponse{textResponse("new: ", "./src/foo.py")}}
	c := NewGeminiCompleterFromModel(llm, 0.2)

	reply, err := c.Complete(context.Background(), "route this task", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "new: ./src/foo.py" {
		t.Errorf("expected joined text parts, got %q", reply)
	}

	if llm.lastReq.Model != "mock-model" {
		t.Errorf("expected model name to be forwarded, got %q", llm.lastReq.Model)
	}
	if llm.lastReq.Config.MaxOutputTokens != 100 {
		t.Errorf("expected max tokens 100, got %d", llm.lastReq.Config.MaxOutputTokens)
	}
	if got := *llm.lastReq.Config.Temperature; got != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", got)
	}
	if len(llm.lastReq.Contents) != 1 || llm.lastReq.Contents[0].Parts[0].Text != "route this task" {
		t.Errorf("unexpected contents: %+v", llm.lastReq.Contents)
	}
}

func TestGeminiCompleter_ChatMapsRoles(t *testing.T) {
	llm := &mockLLM{responses: []*model.LLMResponse{textResponse("ok")}}
	c := NewGeminiCompleterFromModel(llm, 0.8)

	_, err := c.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are a product owner."},
		{Role: RoleUser, Content: "Split this vision."},
		{Role: RoleAssistant, Content: "Sure."},
		{Role: RoleUser, Content: "Go on."},
	}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := llm.lastReq
	if req.Config.SystemInstruction == nil || req.Config.SystemInstruction.Parts[0].Text != "You are a product owner." {
		t.Errorf("expected system instruction, got %+v", req.Config.SystemInstruction)
	}
	if len(req.Contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(req.Contents))
	}
	if req.Contents[1].Role != string(genai.RoleModel) {
		t.Errorf("expected assistant turn to use the model role, got %q", req.Contents[1].Role)
	}
	if req.Config.MaxOutputTokens != 0 {
		t.Errorf("expected no token cap, got %d", req.Config.MaxOutputTokens)
	}
}

func TestGeminiCompleter_SkipsThoughts(t *testing.T) {
	resp := &model.LLMResponse{Content: &genai.Content{Parts: []*genai.Part{
		{Text: "thinking...", Thought: true},
		{Text: "answer"},
	}}}
	c := NewGeminiCompleterFromModel(&mockLLM{responses: []*model.LLMResponse{resp}}, 0)

	reply, err := c.Complete(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "answer" {
		t.Errorf("expected thoughts to be dropped, got %q", reply)
	}
}

func TestGeminiCompleter_Errors(t *testing.T) {
	tests := []struct {
		name string
		llm  *mockLLM
	}{
		{name: "transport error", llm: &mockLLM{err: errors.New("connection reset")}},
		{name: "error code", llm: &mockLLM{responses: []*model.LLMResponse{{ErrorCode: "RESOURCE_EXHAUSTED", ErrorMessage: "quota"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewGeminiCompleterFromModel(tt.llm, 0)
			_, err := c.Complete(context.Background(), "q", 10)
			if !errors.Is(err, ErrOracleUnavailable) {
				t.Errorf("expected ErrOracleUnavailable, got %v", err)
			}
		})
	}
}

func TestGeminiCompleter_EmptyConversation(t *testing.T) {
	c := NewGeminiCompleterFromModel(&mockLLM{}, 0)
	if _, err := c.Chat(context.Background(), []Message{{Role: RoleSystem, Content: "only system"}}, 0); err == nil {
		t.Fatal("expected error for conversation without turns")
	}
}
