// Package planning fills the backlogs: the product owner turns a vision into
// the product backlog, the architect lays out the project and the sprint
// planner moves the top items into the sprint backlog as tasks.
package planning

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/chasedowdell/SprintSwarm/internal/backlog"
	"github.com/chasedowdell/SprintSwarm/internal/developer"
	"github.com/chasedowdell/SprintSwarm/internal/llm"
	"github.com/chasedowdell/SprintSwarm/internal/project"
)

const backlogMaxTokens = 2000

var validate = validator.New()

// ProductOwner builds the product backlog from a vision.
type ProductOwner struct {
	oracle  llm.Oracle
	product *backlog.Queue
	logger  *zap.Logger
}

// NewProductOwner creates a ProductOwner filling product.
func NewProductOwner(oracle llm.Oracle, product *backlog.Queue, logger *zap.Logger) *ProductOwner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductOwner{oracle: oracle, product: product, logger: logger}
}

// ReceiveVision asks the oracle for a prioritized backlog and inserts each
// line as an item whose priority is its position in the reply.
func (p *ProductOwner) ReceiveVision(ctx context.Context, vision project.Vision) ([]backlog.WorkItem, error) {
	if err := validate.Struct(vision); err != nil {
		return nil, fmt.Errorf("invalid vision: %w", err)
	}

	prompt, err := render(backlogTmpl, vision)
	if err != nil {
		return nil, err
	}
	reply, err := p.oracle.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}, backlogMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to create product backlog: %w", err)
	}

	lines := developer.ParseTaskList(reply, 0)
	items := make([]backlog.WorkItem, 0, len(lines))
	for i, line := range lines {
		item := backlog.NewWorkItem(i, line)
		vec, err := p.oracle.Embed(ctx, line)
		if err != nil {
			return items, fmt.Errorf("failed to embed backlog item %q: %w", line, err)
		}
		if err := p.product.Insert(ctx, item, vec); err != nil {
			return items, err
		}
		items = append(items, item)
	}

	p.logger.Info("product backlog created", zap.String("title", vision.Title), zap.Int("items", len(items)))
	return items, nil
}
