// Package standup drains the sprint backlog. Each popped item is decomposed
// into tasks and every task is routed to a change request. Failures are
// counted, never returned.
package standup

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chasedowdell/SprintSwarm/internal/backlog"
	"github.com/chasedowdell/SprintSwarm/internal/codebase"
	"github.com/chasedowdell/SprintSwarm/internal/developer"
	"github.com/chasedowdell/SprintSwarm/internal/metrics"
	"github.com/chasedowdell/SprintSwarm/internal/project"
)

var tracer = otel.Tracer("sprintswarm.standup")

// Decomposer splits an item into tasks.
type Decomposer interface {
	Decompose(ctx context.Context, item backlog.WorkItem, vision project.Vision, structure project.Structure) ([]string, error)
}

// Router turns one task into an emitted change request.
type Router interface {
	Route(ctx context.Context, task developer.Task) (developer.Outcome, error)
}

// ProjectContext supplies the vision and structure shown to the decomposer.
type ProjectContext interface {
	Vision(ctx context.Context) (project.Vision, error)
	Structure(ctx context.Context) (project.Structure, error)
}

// Reindexer refreshes the code corpus.
type Reindexer interface {
	IndexAll(ctx context.Context) (codebase.Stats, error)
}

// Options tunes a Driver. The zero value runs one worker without retries.
type Options struct {
	Workers      int
	TaskRetries  int
	RetryBackoff time.Duration
	// Assignee is recorded on items while they are worked on.
	Assignee string
	// Reindexer, when set, runs after every item that emitted a change.
	Reindexer Reindexer
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Driver runs standup cycles over one queue.
type Driver struct {
	queue      *backlog.Queue
	decomposer Decomposer
	router     Router
	project    ProjectContext
	opts       Options
	logger     *zap.Logger

	reindexMu sync.Mutex
}

// NewDriver creates a Driver.
func NewDriver(queue *backlog.Queue, decomposer Decomposer, router Router, pc ProjectContext, opts Options) *Driver {
	opts.Workers = max(opts.Workers, 1)
	opts.TaskRetries = max(opts.TaskRetries, 0)
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		queue:      queue,
		decomposer: decomposer,
		router:     router,
		project:    pc,
		opts:       opts,
		logger:     logger,
	}
}

// RunCycle pops items until the queue is empty or ctx is done. It always
// returns a summary; per-item failures are counted in it.
func (d *Driver) RunCycle(ctx context.Context) Summary {
	started := time.Now()
	runID := uuid.NewString()
	summary := newSummary(runID, started)
	logger := d.logger.With(zap.String("run_id", runID))

	ctx, span := tracer.Start(ctx, "standup.RunCycle",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("queue.namespace", d.queue.Namespace()),
			attribute.Int("queue.length", d.queue.Len()),
			attribute.Int("workers", d.opts.Workers),
		),
	)
	defer span.End()

	vision, structure := d.loadContext(ctx, logger)
	manifest := structure.RenderManifest()
	logger.Info("standup started", zap.Int("items", d.queue.Len()), zap.Int("workers", d.opts.Workers))

	var (
		mu      sync.Mutex
		results []ItemResult
		g       errgroup.Group
	)
	g.SetLimit(d.opts.Workers)

	for {
		if ctx.Err() != nil {
			summary.Canceled = true
			break
		}
		item, ok := d.queue.PopSmallest()
		if !ok {
			break
		}
		d.opts.Metrics.SetQueueDepth(d.queue.Namespace(), d.queue.Len())

		mu.Lock()
		slot := len(results)
		results = append(results, ItemResult{})
		mu.Unlock()

		g.Go(func() error {
			r := d.processItem(ctx, logger, item, vision, structure, manifest)
			mu.Lock()
			results[slot] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		summary.add(r)
	}
	summary.Duration = time.Since(started)
	d.opts.Metrics.ObserveCycle(summary.Duration)

	span.SetAttributes(
		attribute.Int("items.processed", summary.ItemsProcessed),
		attribute.Int("items.failed", summary.ItemsFailed),
		attribute.Int("tasks.failed", summary.TasksFailed),
	)
	logger.Info("standup finished",
		zap.Int("items_processed", summary.ItemsProcessed),
		zap.Int("items_failed", summary.ItemsFailed),
		zap.Int("tasks_succeeded", summary.TasksSucceeded),
		zap.Int("tasks_failed", summary.TasksFailed),
		zap.Duration("duration", summary.Duration),
		zap.Bool("canceled", summary.Canceled))
	return summary
}

// loadContext fetches the vision and structure. Missing context is not fatal;
// the decomposer then works from the item alone.
func (d *Driver) loadContext(ctx context.Context, logger *zap.Logger) (project.Vision, project.Structure) {
	var (
		vision    project.Vision
		structure project.Structure
	)
	if d.project == nil {
		return vision, structure
	}

	v, err := d.project.Vision(ctx)
	switch {
	case err == nil:
		vision = v
	case errors.Is(err, project.ErrNoContext):
		logger.Warn("no product vision stored")
	default:
		logger.Warn("failed to load product vision", zap.Error(err))
	}

	s, err := d.project.Structure(ctx)
	switch {
	case err == nil:
		structure = s
	case errors.Is(err, project.ErrNoContext):
		logger.Warn("no project structure stored")
	default:
		logger.Warn("failed to load project structure", zap.Error(err))
	}
	return vision, structure
}

func (d *Driver) processItem(ctx context.Context, logger *zap.Logger, item backlog.WorkItem, vision project.Vision, structure project.Structure, manifest string) ItemResult {
	ctx, span := tracer.Start(ctx, "standup.Item",
		trace.WithAttributes(
			attribute.String("item.id", item.ID),
			attribute.Int("item.priority", item.Priority),
		),
	)
	defer span.End()

	item.Status = backlog.StatusInProgress
	if d.opts.Assignee != "" {
		assignee := d.opts.Assignee
		item.Assignee = &assignee
	}
	logger = logger.With(zap.String("item_id", item.ID), zap.Int("priority", item.Priority))
	logger.Info("working on item", zap.String("description", item.Description))

	result := ItemResult{Item: item}

	tasks, err := d.decomposer.Decompose(ctx, item, vision, structure)
	if err != nil {
		result.Failure = Classify(err)
		result.Err = err
		span.RecordError(err)
		d.opts.Metrics.RecordItem(false)
		d.opts.Metrics.RecordFailure(string(result.Failure))
		logger.Error("failed to decompose item", zap.String("kind", string(result.Failure)), zap.Error(err))
		return result
	}
	logger.Debug("item decomposed", zap.Int("tasks", len(tasks)))

	emitted := 0
	for _, desc := range tasks {
		if ctx.Err() != nil {
			kind := Classify(ctx.Err())
			result.Tasks = append(result.Tasks, TaskResult{Description: desc, Failure: kind, Err: ctx.Err()})
			d.opts.Metrics.RecordFailure(string(kind))
			continue
		}

		tr := d.processTask(ctx, logger, developer.Task{
			Description: desc,
			Item:        item,
			Manifest:    manifest,
			Vision:      vision.Description,
			Paradigm:    structure.ArchitectureParadigm,
		})
		if tr.Failure == "" {
			emitted++
		}
		result.Tasks = append(result.Tasks, tr)
	}

	result.Item.Status = backlog.StatusDone
	d.opts.Metrics.RecordItem(true)

	if emitted > 0 && d.opts.Reindexer != nil {
		d.reindex(ctx, logger)
	}
	return result
}

// processTask routes one task, retrying transient failures.
func (d *Driver) processTask(ctx context.Context, logger *zap.Logger, task developer.Task) TaskResult {
	tr := TaskResult{Description: task.Description}
	start := time.Now()
	defer func() { d.opts.Metrics.ObserveTask(time.Since(start)) }()

	for attempt := 0; ; attempt++ {
		tr.Attempts = attempt + 1
		out, err := d.router.Route(ctx, task)
		if err == nil {
			tr.Decision = out.Decision.Kind()
			tr.FilePath = out.Request.FilePath
			tr.Failure, tr.Err = "", nil
			d.opts.Metrics.RecordDecision(string(tr.Decision))
			logger.Info("change request emitted",
				zap.String("task", task.Description),
				zap.String("decision", string(tr.Decision)),
				zap.String("file_path", tr.FilePath),
				zap.Stringer("mode", out.Request.Mode))
			return tr
		}

		tr.Failure = Classify(err)
		tr.Err = err
		if out.Decision != nil {
			tr.Decision = out.Decision.Kind()
			tr.FilePath = out.Decision.Path()
		}

		if attempt >= d.opts.TaskRetries || !tr.Failure.Transient() || !sleep(ctx, d.backoff(attempt)) {
			break
		}
		logger.Warn("retrying task", zap.String("task", task.Description), zap.Int("attempt", tr.Attempts), zap.Error(err))
	}

	d.opts.Metrics.RecordFailure(string(tr.Failure))
	logger.Error("task failed",
		zap.String("task", task.Description),
		zap.String("kind", string(tr.Failure)),
		zap.Int("attempts", tr.Attempts),
		zap.Error(tr.Err))
	return tr
}

func (d *Driver) backoff(attempt int) time.Duration {
	return d.opts.RetryBackoff * time.Duration(1<<min(attempt, 6))
}

func (d *Driver) reindex(ctx context.Context, logger *zap.Logger) {
	d.reindexMu.Lock()
	defer d.reindexMu.Unlock()

	stats, err := d.opts.Reindexer.IndexAll(ctx)
	d.opts.Metrics.AddIndexed(stats.Indexed)
	if err != nil {
		logger.Warn("failed to re-index codebase", zap.Error(err))
	}
}

// sleep waits for d or until ctx is done, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
