package assistant

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/tool"
	"google.golang.org/genai"

	"github.com/chasedowdell/SprintSwarm/internal/project"
)

// AgentName names the assistant in launcher sessions.
const AgentName = "sprintswarm_assistant"

// AgentConfig configures the assistant agent.
type AgentConfig struct {
	APIKey   string
	Model    string
	Vision   *project.Vision
	Manifest string
	Tools    []tool.Tool
}

var instructionTmpl = template.Must(template.New("instruction").Parse(
	`You are the assistant of an AI agile software team.
You help the humans on the team understand the backlog and the code the team has written.
{{- if .Vision}}

The product is "{{.Vision.Title}}": {{.Vision.Description}}
{{- end}}
{{- if .Manifest}}

Project files:
{{.Manifest}}
{{- end}}

When answering:
- Use search_codebase before guessing where something is implemented
- Use read_file to quote code, never invent it
- Use list_backlog to report progress and add_backlog_item only when asked to add work
- Use save_note to remember decisions the team should not lose
`))

// BuildInstruction renders the system instruction of the assistant.
func BuildInstruction(vision *project.Vision, manifest string) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Vision   *project.Vision
		Manifest string
	}{vision, manifest}
	if err := instructionTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render instruction: %w", err)
	}
	return buf.String(), nil
}

// NewAgent creates the assistant on a Gemini model.
func NewAgent(ctx context.Context, cfg AgentConfig) (agent.Agent, error) {
	instruction, err := BuildInstruction(cfg.Vision, cfg.Manifest)
	if err != nil {
		return nil, err
	}

	llmModel, err := gemini.NewModel(ctx, cfg.Model, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM model: %w", err)
	}

	a, err := llmagent.New(llmagent.Config{
		Name:        AgentName,
		Description: "Answers questions about the backlog and the code of the project",
		Model:       llmModel,
		Instruction: instruction,
		Tools:       cfg.Tools,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return a, nil
}
