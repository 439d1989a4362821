package developer

import (
	"context"
	"fmt"

	"github.com/chasedowdell/SprintSwarm/internal/backlog"
	"github.com/chasedowdell/SprintSwarm/internal/codebase"
	"github.com/chasedowdell/SprintSwarm/internal/llm"
)

// DefaultTopK is the number of candidates shown to the oracle.
const DefaultTopK = 5

// Searcher finds code artifacts similar to a query.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]codebase.Match, error)
}

// Locator picks the existing artifact a task should change, if any.
type Locator struct {
	searcher Searcher
	oracle   llm.Completer
	topK     int
}

// NewLocator creates a Locator. A non-positive topK uses DefaultTopK.
func NewLocator(searcher Searcher, oracle llm.Completer, topK int) *Locator {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Locator{searcher: searcher, oracle: oracle, topK: topK}
}

// Locate searches the code corpus for task. When nothing is indexed the
// verdict is NotFound and the oracle is not consulted.
func (l *Locator) Locate(ctx context.Context, task string, item backlog.WorkItem, manifest string) (Verdict, error) {
	matches, err := l.searcher.Search(ctx, task, l.topK)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to search candidates: %w", err)
	}
	if len(matches) == 0 {
		return NotFound, nil
	}

	prompt, err := render(locateTmpl, locateData{
		Matches:  matches,
		Manifest: manifest,
		Item:     item.Description,
		Task:     task,
	})
	if err != nil {
		return Verdict{}, err
	}

	reply, err := l.oracle.Complete(ctx, prompt, shortMaxTokens)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to select candidate: %w", err)
	}
	return ParseLocatorReply(reply)
}
