package planning

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chasedowdell/SprintSwarm/internal/backlog"
	"github.com/chasedowdell/SprintSwarm/internal/developer"
	"github.com/chasedowdell/SprintSwarm/internal/llm"
	"github.com/chasedowdell/SprintSwarm/internal/project"
)

const sprintMaxTokens = 2000

// PlannedItem records the tasks one product backlog item became.
type PlannedItem struct {
	Item  backlog.WorkItem
	Tasks []backlog.WorkItem
}

// SprintPlanner moves the top product backlog items into the sprint backlog.
type SprintPlanner struct {
	oracle         llm.Oracle
	product        *backlog.Queue
	sprint         *backlog.Queue
	context        *project.Context
	itemsPerSprint int
	logger         *zap.Logger
}

// NewSprintPlanner creates a SprintPlanner taking itemsPerSprint items per
// plan. pc may be nil.
func NewSprintPlanner(oracle llm.Oracle, product, sprint *backlog.Queue, pc *project.Context, itemsPerSprint int, logger *zap.Logger) *SprintPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SprintPlanner{
		oracle:         oracle,
		product:        product,
		sprint:         sprint,
		context:        pc,
		itemsPerSprint: max(itemsPerSprint, 1),
		logger:         logger,
	}
}

// Plan decomposes the most urgent product items into sprint tasks. Tasks get
// consecutive priorities after the sprint backlog's current last task, so
// each item's tasks stay contiguous and in order. A task line already queued
// in the sprint backlog is left as it is. A planned item is removed
// from the product backlog; an item that fails stays there and the error is
// returned after the remaining items are planned.
func (s *SprintPlanner) Plan(ctx context.Context) ([]PlannedItem, error) {
	vision, structure := s.loadContext(ctx)

	next := 0
	if items := s.sprint.Items(); len(items) > 0 {
		for _, it := range items {
			next = max(next, it.Priority+1)
		}
	}

	var (
		planned []PlannedItem
		errs    []error
	)
	for _, item := range s.product.Smallest(s.itemsPerSprint) {
		tasks, err := s.planItem(ctx, item, vision, structure, next)
		if err != nil {
			s.logger.Warn("failed to plan item", zap.String("item_id", item.ID), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		next += len(tasks)

		if err := s.product.Remove(ctx, item.ID); err != nil {
			errs = append(errs, err)
		}
		planned = append(planned, PlannedItem{Item: item, Tasks: tasks})
	}

	s.logger.Info("sprint planned", zap.Int("items", len(planned)), zap.Int("sprint_backlog", s.sprint.Len()))
	return planned, errors.Join(errs...)
}

func (s *SprintPlanner) planItem(ctx context.Context, item backlog.WorkItem, vision project.Vision, structure project.Structure, base int) ([]backlog.WorkItem, error) {
	prompt, err := render(sprintTmpl, sprintData{
		Vision:   vision.Description,
		Paradigm: structure.ArchitectureParadigm,
		Item:     item.Description,
	})
	if err != nil {
		return nil, err
	}
	reply, err := s.oracle.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}, sprintMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to decompose item %s: %w", item.ID, err)
	}

	lines := developer.ParseTaskList(reply, 0)
	if len(lines) == 0 {
		return nil, fmt.Errorf("no tasks for item %s", item.ID)
	}

	tasks := make([]backlog.WorkItem, 0, len(lines))
	for _, line := range lines {
		// A task already queued keeps its place; rollback only ever removes
		// what this item inserted.
		if _, queued := s.sprint.Get(backlog.ItemID(line)); queued {
			s.logger.Debug("task already in sprint backlog", zap.String("item_id", item.ID), zap.String("task", line))
			continue
		}
		task := backlog.NewWorkItem(base+len(tasks), line)
		vec, err := s.oracle.Embed(ctx, line)
		if err == nil {
			err = s.sprint.Insert(ctx, task, vec)
		}
		if err != nil {
			s.rollback(ctx, tasks)
			return nil, fmt.Errorf("failed to add task %q: %w", line, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// rollback removes the tasks already inserted for a failed item.
func (s *SprintPlanner) rollback(ctx context.Context, tasks []backlog.WorkItem) {
	for _, t := range tasks {
		if err := s.sprint.Remove(ctx, t.ID); err != nil {
			s.logger.Warn("failed to roll back task", zap.String("task_id", t.ID), zap.Error(err))
		}
	}
}

func (s *SprintPlanner) loadContext(ctx context.Context) (project.Vision, project.Structure) {
	var (
		vision    project.Vision
		structure project.Structure
	)
	if s.context == nil {
		return vision, structure
	}
	if v, err := s.context.Vision(ctx); err == nil {
		vision = v
	} else {
		s.logger.Debug("planning without vision", zap.Error(err))
	}
	if st, err := s.context.Structure(ctx); err == nil {
		structure = st
	} else {
		s.logger.Debug("planning without structure", zap.Error(err))
	}
	return vision, structure
}
