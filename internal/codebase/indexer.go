package codebase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/chasedowdell/SprintSwarm/internal/index"
	"github.com/chasedowdell/SprintSwarm/internal/llm"
)

const summaryMaxTokens = 200

// ignoredDirs are never walked or watched. Hidden directories are skipped too.
var ignoredDirs = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	"vendor":       true,
	"venv":         true,
}

func ignoredDir(name string) bool {
	return ignoredDirs[name] || (strings.HasPrefix(name, ".") && name != "." && name != "..")
}

// Stats counts the outcome of an indexing pass.
type Stats struct {
	Files     int
	Functions int
	Indexed   int
	Skipped   int
	Removed   int
	Failed    int
}

func (s *Stats) add(o Stats) {
	s.Files += o.Files
	s.Functions += o.Functions
	s.Indexed += o.Indexed
	s.Skipped += o.Skipped
	s.Removed += o.Removed
	s.Failed += o.Failed
}

// Indexer keeps the codebase namespace in sync with the functions of a
// source tree. Each function is summarized by the completion oracle and the
// summary is embedded.
type Indexer struct {
	idx       index.Index
	oracle    llm.Oracle
	namespace string
	root      string
	logger    *zap.Logger

	mu sync.Mutex
	// known maps a display path to the artifact keys last indexed for it.
	known map[string]map[string]struct{}
}

// NewIndexer creates an Indexer for the tree rooted at root.
func NewIndexer(idx index.Index, oracle llm.Oracle, namespace, root string, logger *zap.Logger) (*Indexer, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		idx:       idx,
		oracle:    oracle,
		namespace: namespace,
		root:      abs,
		logger:    logger,
		known:     make(map[string]map[string]struct{}),
	}, nil
}

// Root returns the absolute root of the indexed tree.
func (ix *Indexer) Root() string {
	return ix.root
}

// DisplayPath converts path into the "./rel/path" form used in artifact keys.
func (ix *Indexer) DisplayPath(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(ix.root, path)
	}
	rel, err := filepath.Rel(ix.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside %s", path, ix.root)
	}
	return "./" + filepath.ToSlash(rel), nil
}

// IndexAll indexes every supported file under the root.
func (ix *Indexer) IndexAll(ctx context.Context) (Stats, error) {
	var total Stats
	err := filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != ix.root && ignoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !Supported(path) {
			return nil
		}
		stats, err := ix.IndexFile(ctx, path)
		total.add(stats)
		return err
	})
	if err != nil {
		return total, fmt.Errorf("failed to index %s: %w", ix.root, err)
	}

	ix.logger.Info("codebase indexed",
		zap.Int("files", total.Files),
		zap.Int("functions", total.Functions),
		zap.Int("indexed", total.Indexed),
		zap.Int("skipped", total.Skipped),
		zap.Int("failed", total.Failed))
	return total, nil
}

// IndexFile indexes the functions of one file and removes keys of functions
// that no longer exist in it. Oracle failures are counted per function;
// an unavailable index aborts the file.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (Stats, error) {
	stats := Stats{Files: 1}

	display, err := ix.DisplayPath(path)
	if err != nil {
		return stats, err
	}
	if strings.Contains(display, ":") {
		ix.logger.Warn("skipping file whose path contains a colon", zap.String("path", display))
		return Stats{}, nil
	}

	abs := filepath.Join(ix.root, filepath.FromSlash(strings.TrimPrefix(display, "./")))
	src, err := os.ReadFile(abs)
	if err != nil {
		return stats, fmt.Errorf("failed to read %s: %w", display, err)
	}

	funcs, err := ExtractFunctions(ctx, abs, src)
	if err != nil {
		return stats, err
	}
	stats.Functions = len(funcs)

	current := make(map[string]struct{}, len(funcs))
	for _, fn := range funcs {
		key := ArtifactKey(display, fn.Name)
		current[key] = struct{}{}

		indexed, err := ix.indexFunction(ctx, key, display, fn)
		switch {
		case err == nil && indexed:
			stats.Indexed++
		case err == nil:
			stats.Skipped++
		case errors.Is(err, index.ErrIndexUnavailable):
			return stats, err
		default:
			stats.Failed++
			ix.logger.Warn("failed to index function", zap.String("key", key), zap.Error(err))
		}
	}

	removed, err := ix.forget(ctx, display, current)
	stats.Removed = removed
	return stats, err
}

// indexFunction upserts one function. It reports false when the stored
// record already carries the same code.
func (ix *Indexer) indexFunction(ctx context.Context, key, display string, fn Function) (bool, error) {
	existing, err := ix.idx.Fetch(ctx, ix.namespace, key)
	switch {
	case err == nil && existing.Metadata[MetaCode] == fn.Code:
		return false, nil
	case err != nil && !errors.Is(err, index.ErrNotFound):
		return false, err
	}

	summary, err := ix.oracle.Complete(ctx, summaryPrompt(fn), summaryMaxTokens)
	if err != nil {
		return false, fmt.Errorf("failed to summarize %s: %w", key, err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return false, fmt.Errorf("empty summary for %s", key)
	}

	vec, err := ix.oracle.Embed(ctx, summary)
	if err != nil {
		return false, fmt.Errorf("failed to embed summary of %s: %w", key, err)
	}

	err = ix.idx.Upsert(ctx, ix.namespace, index.Record{
		ID:     key,
		Vector: vec,
		Metadata: index.Metadata{
			MetaFilePath:     display,
			MetaFunctionName: fn.Name,
			MetaDescription:  summary,
			MetaCode:         fn.Code,
		},
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// RemoveFile deletes every key last indexed for path.
func (ix *Indexer) RemoveFile(ctx context.Context, path string) error {
	display, err := ix.DisplayPath(path)
	if err != nil {
		return err
	}
	_, err = ix.forget(ctx, display, nil)
	return err
}

// forget deletes the keys of display that are not in keep and records keep
// as the file's current keys.
func (ix *Indexer) forget(ctx context.Context, display string, keep map[string]struct{}) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var stale []string
	for key := range ix.known[display] {
		if _, ok := keep[key]; !ok {
			stale = append(stale, key)
		}
	}
	if len(stale) > 0 {
		if err := ix.idx.Delete(ctx, ix.namespace, stale...); err != nil {
			return 0, err
		}
	}

	if len(keep) == 0 {
		delete(ix.known, display)
	} else {
		ix.known[display] = keep
	}
	return len(stale), nil
}

func summaryPrompt(fn Function) string {
	return fmt.Sprintf("Please generate a brief 1 to 2 sentence description of the following function (%s) without any additional explanation:\n%s", fn.Name, fn.Code)
}
