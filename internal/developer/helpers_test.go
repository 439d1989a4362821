package developer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chasedowdell/SprintSwarm/internal/codebase"
	"github.com/chasedowdell/SprintSwarm/internal/codestore"
	"github.com/chasedowdell/SprintSwarm/internal/llm"
)

// scriptedOracle answers each prompt with the reply of the first rule whose
// marker the prompt contains.
type scriptedOracle struct {
	mu      sync.Mutex
	rules   []rule
	prompts []string
}

type rule struct {
	marker string
	reply  string
	err    error
}

func (o *scriptedOracle) on(marker, reply string) *scriptedOracle {
	o.rules = append(o.rules, rule{marker: marker, reply: reply})
	return o
}

func (o *scriptedOracle) fail(marker string, err error) *scriptedOracle {
	o.rules = append(o.rules, rule{marker: marker, err: err})
	return o
}

func (o *scriptedOracle) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prompts = append(o.prompts, prompt)
	for _, r := range o.rules {
		if strings.Contains(prompt, r.marker) {
			return r.reply, r.err
		}
	}
	return "", fmt.Errorf("unexpected prompt: %.60s", prompt)
}

func (o *scriptedOracle) Chat(ctx context.Context, messages []llm.Message, maxTokens int) (string, error) {
	return "", errors.New("chat not scripted")
}

func (o *scriptedOracle) calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.prompts)
}

func (o *scriptedOracle) promptWith(marker string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, p := range o.prompts {
		if strings.Contains(p, marker) {
			return p
		}
	}
	return ""
}

// Markers that identify each prompt template.
const (
	markDecompose  = "generate a list of detailed code implementation actions"
	markLocate     = "The following code already exists"
	markChooseFile = "new:<file path> or update:<file path>"
	markNewFile    = "Respond with the content of the new file"
	markExtend     = "Include all the original code in your response"
	markReuse      = "Include all the original code of the file"
)

type stubSearcher struct {
	matches []codebase.Match
	err     error
	queries []string
}

func (s *stubSearcher) Search(ctx context.Context, query string, k int) ([]codebase.Match, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.matches[:min(k, len(s.matches))], nil
}

// memStore is an in-memory code store that records every change request.
type memStore struct {
	mu       sync.Mutex
	files    map[string]string
	requests []codestore.ChangeRequest
	writeErr error
	// failFirst fails only the first write with writeErr.
	failFirst bool
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string]string)}
}

func (s *memStore) GetContent(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.files[path]
	if !ok {
		return "", fmt.Errorf("%s: %w", path, codestore.ErrNotFound)
	}
	return content, nil
}

func (s *memStore) write(path, content string, mode codestore.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		err := s.writeErr
		if s.failFirst {
			s.writeErr = nil
		}
		return err
	}
	if mode == codestore.ModeUpdate {
		if _, ok := s.files[path]; !ok {
			return fmt.Errorf("%s: %w", path, codestore.ErrNotFound)
		}
	}
	s.files[path] = content
	s.requests = append(s.requests, codestore.ChangeRequest{FilePath: path, Content: content, Mode: mode})
	return nil
}

func (s *memStore) Create(ctx context.Context, path, content string) error {
	return s.write(path, content, codestore.ModeCreate)
}

func (s *memStore) Update(ctx context.Context, path, content string) error {
	return s.write(path, content, codestore.ModeUpdate)
}

func (s *memStore) emitted() []codestore.ChangeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]codestore.ChangeRequest(nil), s.requests...)
}
