// Package assistant exposes the team's backlog, code index and notes to an
// interactive ADK agent.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"github.com/chasedowdell/SprintSwarm/internal/backlog"
	"github.com/chasedowdell/SprintSwarm/internal/codestore"
	"github.com/chasedowdell/SprintSwarm/internal/llm"
)

const (
	toolSearchCodebase = "search_codebase"
	toolReadFile       = "read_file"
	toolListBacklog    = "list_backlog"
	toolAddBacklogItem = "add_backlog_item"
	toolSaveNote       = "save_note"

	maxFileChars   = 10000
	defaultResults = 5
	maxResults     = 20
)

// ToolsConfig holds dependencies for creating tools.
type ToolsConfig struct {
	Searcher Searcher
	Store    codestore.Store
	Product  *backlog.Queue
	Sprint   *backlog.Queue
	Notes    *Notes
	Embedder llm.Embedder
}

// --- Tool Input/Output Structs ---

// SearchCodebaseArgs is the input for search_codebase.
type SearchCodebaseArgs struct {
	Query string `json:"query" jsonschema:"description=What the code should do"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Number of matches, default 5"`
}

// ReadFileArgs is the input for read_file.
type ReadFileArgs struct {
	Path string `json:"path" jsonschema:"description=Repository relative file path"`
}

// ListBacklogArgs is the input for list_backlog.
type ListBacklogArgs struct {
	Sprint bool `json:"sprint,omitempty" jsonschema:"description=List the sprint backlog instead of the product backlog"`
}

// AddBacklogItemArgs is the input for add_backlog_item.
type AddBacklogItemArgs struct {
	Description string `json:"description" jsonschema:"description=One sentence work item"`
	Priority    int    `json:"priority,omitempty" jsonschema:"description=Lower is more urgent"`
}

// SaveNoteArgs is the input for save_note.
type SaveNoteArgs struct {
	Topic string `json:"topic" jsonschema:"description=Short topic used as the note id"`
	Text  string `json:"text" jsonschema:"description=What to remember"`
}

// Result is the output of every tool.
type Result struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func failure(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Toolset implements the tool handlers.
type Toolset struct {
	cfg ToolsConfig
}

// NewToolset creates a Toolset from cfg.
func NewToolset(cfg ToolsConfig) *Toolset {
	return &Toolset{cfg: cfg}
}

func (t *Toolset) searchCodebase(ctx context.Context, args SearchCodebaseArgs) Result {
	if strings.TrimSpace(args.Query) == "" {
		return failure("query is required")
	}
	k := args.Limit
	if k <= 0 {
		k = defaultResults
	}
	k = min(k, maxResults)

	matches, err := t.cfg.Searcher.Search(ctx, args.Query, k)
	if err != nil {
		return failure("failed to search codebase: %v", err)
	}
	if len(matches) == 0 {
		return Result{Success: true, Data: "no indexed function matches"}
	}

	results := make([]map[string]interface{}, 0, len(matches))
	for _, m := range matches {
		results = append(results, map[string]interface{}{
			"artifact_key": m.ArtifactKey,
			"file_path":    m.FilePath,
			"function":     m.Symbol,
			"description":  m.Description,
			"similarity":   fmt.Sprintf("%.2f", m.Score),
		})
	}
	return Result{Success: true, Data: results}
}

func (t *Toolset) readFile(ctx context.Context, args ReadFileArgs) Result {
	if args.Path == "" {
		return failure("path is required")
	}
	content, err := t.cfg.Store.GetContent(ctx, args.Path)
	switch {
	case errors.Is(err, codestore.ErrInvalidPath):
		return failure("access denied: %s is outside the repository", args.Path)
	case errors.Is(err, codestore.ErrNotFound):
		return failure("%s does not exist", args.Path)
	case err != nil:
		return failure("failed to read file: %v", err)
	}
	if len(content) > maxFileChars {
		content = content[:maxFileChars] + "\n... (truncated)"
	}
	return Result{Success: true, Data: content}
}

func (t *Toolset) listBacklog(_ context.Context, args ListBacklogArgs) Result {
	q := t.cfg.Product
	if args.Sprint {
		q = t.cfg.Sprint
	}
	if q == nil {
		return failure("backlog is not available")
	}

	items := q.Items()
	results := make([]map[string]interface{}, 0, len(items))
	for _, it := range items {
		results = append(results, map[string]interface{}{
			"id":          it.ID,
			"priority":    it.Priority,
			"description": it.Description,
			"status":      it.Status.String(),
			"assignee":    it.AssigneeName(),
		})
	}
	return Result{Success: true, Data: results}
}

func (t *Toolset) addBacklogItem(ctx context.Context, args AddBacklogItemArgs) Result {
	desc := strings.TrimSpace(args.Description)
	if desc == "" {
		return failure("description is required")
	}
	if t.cfg.Product == nil {
		return failure("backlog is not available")
	}

	item := backlog.NewWorkItem(args.Priority, desc)
	vec, err := t.cfg.Embedder.Embed(ctx, desc)
	if err != nil {
		return failure("failed to generate embedding: %v", err)
	}
	if err := t.cfg.Product.Insert(ctx, item, vec); err != nil {
		return failure("failed to add item: %v", err)
	}
	return Result{Success: true, Data: map[string]interface{}{"id": item.ID, "priority": item.Priority}}
}

func (t *Toolset) saveNote(ctx context.Context, args SaveNoteArgs) Result {
	topic := strings.TrimSpace(args.Topic)
	if topic == "" || strings.TrimSpace(args.Text) == "" {
		return failure("topic and text are both required")
	}
	if err := t.cfg.Notes.Save(ctx, "note:"+topic, args.Text, "assistant"); err != nil {
		return failure("failed to save note: %v", err)
	}
	return Result{Success: true, Data: "note saved"}
}

// BuildTools creates all assistant tools.
func BuildTools(cfg ToolsConfig) ([]tool.Tool, error) {
	t := NewToolset(cfg)

	specs := []struct {
		name  string
		desc  string
		build func(functiontool.Config) (tool.Tool, error)
	}{
		{toolSearchCodebase, "Find indexed functions of the repository that are similar to a description.", func(c functiontool.Config) (tool.Tool, error) {
			return functiontool.New(c, func(ctx tool.Context, args SearchCodebaseArgs) (Result, error) {
				return t.searchCodebase(ctx, args), nil
			})
		}},
		{toolReadFile, "Read a file of the repository by its relative path.", func(c functiontool.Config) (tool.Tool, error) {
			return functiontool.New(c, func(ctx tool.Context, args ReadFileArgs) (Result, error) {
				return t.readFile(ctx, args), nil
			})
		}},
		{toolListBacklog, "List the product or sprint backlog in priority order.", func(c functiontool.Config) (tool.Tool, error) {
			return functiontool.New(c, func(ctx tool.Context, args ListBacklogArgs) (Result, error) {
				return t.listBacklog(ctx, args), nil
			})
		}},
		{toolAddBacklogItem, "Add a work item to the product backlog.", func(c functiontool.Config) (tool.Tool, error) {
			return functiontool.New(c, func(ctx tool.Context, args AddBacklogItemArgs) (Result, error) {
				return t.addBacklogItem(ctx, args), nil
			})
		}},
		{toolSaveNote, "Remember a decision or finding for later sessions.", func(c functiontool.Config) (tool.Tool, error) {
			return functiontool.New(c, func(ctx tool.Context, args SaveNoteArgs) (Result, error) {
				return t.saveNote(ctx, args), nil
			})
		}},
	}

	tools := make([]tool.Tool, 0, len(specs))
	for _, s := range specs {
		tl, err := s.build(functiontool.Config{Name: s.name, Description: s.desc})
		if err != nil {
			return nil, fmt.Errorf("failed to create %s tool: %w", s.name, err)
		}
		tools = append(tools, tl)
	}
	return tools, nil
}
