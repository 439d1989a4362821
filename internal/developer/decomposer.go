// Package developer turns backlog items into change requests. A Decomposer
// splits an item into tasks, a Locator looks for an existing artifact per
// task and a Router decides how each task changes the code store.
package developer

import (
	"context"
	"fmt"

	"github.com/chasedowdell/SprintSwarm/internal/backlog"
	"github.com/chasedowdell/SprintSwarm/internal/llm"
	"github.com/chasedowdell/SprintSwarm/internal/project"
)

const (
	decomposeMaxTokens = 2000
	codeMaxTokens      = 8000
	shortMaxTokens     = 200
)

// Decomposer splits a work item into at most MaxTasks atomic tasks.
type Decomposer struct {
	oracle   llm.Completer
	maxTasks int
}

// NewDecomposer creates a Decomposer. maxTasks below one is treated as one.
func NewDecomposer(oracle llm.Completer, maxTasks int) *Decomposer {
	return &Decomposer{oracle: oracle, maxTasks: max(maxTasks, 1)}
}

// MaxTasks returns the task cap.
func (d *Decomposer) MaxTasks() int {
	return d.maxTasks
}

// Decompose asks the oracle for the implementation tasks of item. An oracle
// failure returns no tasks at all.
func (d *Decomposer) Decompose(ctx context.Context, item backlog.WorkItem, vision project.Vision, structure project.Structure) ([]string, error) {
	prompt, err := render(decomposeTmpl, decomposeData{
		Vision:   vision.Description,
		Paradigm: structure.ArchitectureParadigm,
		Manifest: structure.RenderManifest(),
		MaxTasks: d.maxTasks,
		Item:     item.Description,
	})
	if err != nil {
		return nil, err
	}

	reply, err := d.oracle.Complete(ctx, prompt, decomposeMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to decompose item %s: %w", item.ID, err)
	}
	return ParseTaskList(reply, d.maxTasks), nil
}
