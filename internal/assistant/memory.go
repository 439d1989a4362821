package assistant

import (
	"context"
	"fmt"
	"strings"

	adkmemory "google.golang.org/adk/memory"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/chasedowdell/SprintSwarm/internal/codebase"
)

// Searcher finds indexed code artifacts similar to a query.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]codebase.Match, error)
}

const (
	memoryNotes = 5
	memoryCode  = 5
	// minAnswerLen filters acknowledgements out of session ingestion.
	minAnswerLen = 20
)

// MemoryService answers ADK memory searches from saved notes and the code
// index, and keeps finished sessions as notes.
type MemoryService struct {
	notes    *Notes
	searcher Searcher
}

// NewMemoryService creates a MemoryService. searcher may be nil.
func NewMemoryService(notes *Notes, searcher Searcher) *MemoryService {
	return &MemoryService{notes: notes, searcher: searcher}
}

// AddSession stores the last question and answer of sess as a note. Sessions
// that already called save_note are skipped.
func (s *MemoryService) AddSession(ctx context.Context, sess session.Session) error {
	var question, answer string
	for event := range sess.Events().All() {
		if event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			if part.FunctionCall != nil && part.FunctionCall.Name == toolSaveNote {
				return nil
			}
		}
		text := strings.Join(textParts(event.Content), " ")
		if text == "" {
			continue
		}
		if event.Author == "user" {
			question = text
		} else {
			answer = text
		}
	}

	if question == "" || len(answer) <= minAnswerLen {
		return nil
	}
	text := "Q: " + question + "\nA: " + answer
	if err := s.notes.Save(ctx, "session:"+sess.ID(), text, "session"); err != nil {
		return fmt.Errorf("failed to save session to memory: %w", err)
	}
	return nil
}

// Search returns notes first, then code matches.
func (s *MemoryService) Search(ctx context.Context, req *adkmemory.SearchRequest) (*adkmemory.SearchResponse, error) {
	resp := &adkmemory.SearchResponse{Memories: []adkmemory.Entry{}}
	if strings.TrimSpace(req.Query) == "" {
		return resp, nil
	}

	notes, err := s.notes.Search(ctx, req.Query, memoryNotes)
	if err != nil {
		return nil, err
	}
	for _, n := range notes {
		resp.Memories = append(resp.Memories, adkmemory.Entry{
			Content:   genai.NewContentFromText(n.Text, genai.RoleModel),
			Author:    n.Source,
			Timestamp: n.SavedAt,
		})
	}

	if s.searcher == nil {
		return resp, nil
	}
	matches, err := s.searcher.Search(ctx, req.Query, memoryCode)
	if err != nil {
		return nil, fmt.Errorf("failed to search codebase: %w", err)
	}
	for _, m := range matches {
		resp.Memories = append(resp.Memories, adkmemory.Entry{
			Content: genai.NewContentFromText(m.ArtifactKey+": "+m.Description, genai.RoleModel),
			Author:  "codebase",
		})
	}
	return resp, nil
}

func textParts(c *genai.Content) []string {
	var texts []string
	for _, part := range c.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return texts
}

var _ adkmemory.Service = (*MemoryService)(nil)
