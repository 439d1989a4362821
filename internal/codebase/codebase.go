// Package codebase indexes the code corpus and answers similarity searches
// over it. Every function is stored under its artifact key "path:symbol".
package codebase

import (
	"context"
	"fmt"
	"strings"

	"github.com/chasedowdell/SprintSwarm/internal/index"
	"github.com/chasedowdell/SprintSwarm/internal/llm"
)

// Metadata keys of codebase records.
const (
	MetaFilePath     = "file_path"
	MetaFunctionName = "function_name"
	MetaDescription  = "description"
	MetaCode         = "code"
)

// Match is one code artifact returned by a search. Higher Score is more relevant.
type Match struct {
	ArtifactKey string
	FilePath    string
	Symbol      string
	Description string
	Score       float32
}

// ArtifactKey joins a file path and symbol into the "path:symbol" form.
func ArtifactKey(filePath, symbol string) string {
	return filePath + ":" + symbol
}

// Searcher runs similarity searches over the codebase namespace.
type Searcher struct {
	idx       index.Index
	embedder  llm.Embedder
	namespace string
}

// NewSearcher creates a Searcher over namespace of idx.
func NewSearcher(idx index.Index, embedder llm.Embedder, namespace string) *Searcher {
	return &Searcher{idx: idx, embedder: embedder, namespace: namespace}
}

// Search embeds query and returns the k closest artifacts.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]Match, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.idx.Query(ctx, s.namespace, vec, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search codebase: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, toMatch(r))
	}
	return matches, nil
}

func toMatch(r index.Match) Match {
	m := Match{
		ArtifactKey: r.ID,
		FilePath:    r.Metadata[MetaFilePath],
		Symbol:      r.Metadata[MetaFunctionName],
		Description: r.Metadata[MetaDescription],
		Score:       r.Score,
	}
	if m.FilePath == "" || m.Symbol == "" {
		if path, symbol, ok := strings.Cut(r.ID, ":"); ok {
			if m.FilePath == "" {
				m.FilePath = path
			}
			if m.Symbol == "" {
				m.Symbol = symbol
			}
		}
	}
	return m
}
