package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/chasedowdell/SprintSwarm/internal/backlog"
	"github.com/chasedowdell/SprintSwarm/internal/codebase"
	"github.com/chasedowdell/SprintSwarm/internal/codestore"
	"github.com/chasedowdell/SprintSwarm/internal/config"
	"github.com/chasedowdell/SprintSwarm/internal/developer"
	"github.com/chasedowdell/SprintSwarm/internal/index"
	"github.com/chasedowdell/SprintSwarm/internal/llm"
	"github.com/chasedowdell/SprintSwarm/internal/logging"
	"github.com/chasedowdell/SprintSwarm/internal/metrics"
	"github.com/chasedowdell/SprintSwarm/internal/planning"
	"github.com/chasedowdell/SprintSwarm/internal/project"
	"github.com/chasedowdell/SprintSwarm/internal/standup"
)

// App holds the collaborators of one CLI invocation. Each is created on
// first use so commands only connect to what they need.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Out     io.Writer
	Metrics *metrics.Metrics

	idx    index.Index
	oracle llm.Oracle
	store  codestore.Store
	repo   *codestore.GitStore
	queues map[string]*backlog.Queue
}

// Overrides replaces collaborators that would otherwise be built from config.
type Overrides struct {
	Oracle llm.Oracle
	Index  index.Index
	Store  codestore.Store
}

func newApp(cfg *config.Config, logger *zap.Logger, out io.Writer, ov Overrides) *App {
	return &App{
		Config:  cfg,
		Logger:  logger,
		Out:     out,
		Metrics: metrics.New(),
		idx:     ov.Index,
		oracle:  ov.Oracle,
		store:   ov.Store,
		queues:  make(map[string]*backlog.Queue),
	}
}

func loadApp(configPath string, verbose bool, out io.Writer, ov Overrides) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging, verbose)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	return newApp(cfg, logger, out, ov), nil
}

// Index opens the configured similarity index once.
func (a *App) Index(ctx context.Context) (index.Index, error) {
	if a.idx != nil {
		return a.idx, nil
	}
	idx, err := index.Open(ctx, a.Config.Index.Backend, a.Config.Index.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s index: %w", a.Config.Index.Backend, err)
	}
	a.idx = index.WithTimeout(idx, a.Config.Timeouts.Index)
	a.Logger.Debug("index opened", zap.String("backend", a.Config.Index.Backend))
	return a.idx, nil
}

// Oracle builds the configured completion and embedding oracle once.
func (a *App) Oracle(ctx context.Context) (llm.Oracle, error) {
	if a.oracle != nil {
		return a.oracle, nil
	}
	if err := a.Config.RequireAPIKey(); err != nil {
		return nil, err
	}
	oracle, err := llm.New(ctx, a.Config.LLM, a.Config.Timeouts)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s oracle: %w", a.Config.LLM.Provider, err)
	}
	a.oracle = oracle
	return a.oracle, nil
}

// Repo opens the configured git repository once.
func (a *App) Repo(ctx context.Context) (*codestore.GitStore, error) {
	if a.repo != nil {
		return a.repo, nil
	}
	git, err := codestore.NewGitStore(ctx, a.Config.Git.RepoPath, codestore.WithAuthor(a.Config.Developer.Name, a.Config.Developer.Name+"@sprintswarm.local"))
	if err != nil {
		return nil, err
	}
	a.repo = git
	return a.repo, nil
}

// Store returns the code store the developer commits to.
func (a *App) Store(ctx context.Context) (codestore.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	git, err := a.Repo(ctx)
	if err != nil {
		return nil, err
	}
	a.store = codestore.WithTimeout(git, a.Config.Timeouts.Store)
	return a.store, nil
}

// Queue loads the backlog of namespace from its snapshot.
func (a *App) Queue(ctx context.Context, namespace string) (*backlog.Queue, error) {
	if q, ok := a.queues[namespace]; ok {
		return q, nil
	}
	idx, err := a.Index(ctx)
	if err != nil {
		return nil, err
	}
	q := backlog.New(idx, namespace)
	if err := backlog.LoadSnapshot(backlog.SnapshotPath(a.Config.StateDir, namespace), q); err != nil {
		return nil, err
	}
	a.queues[namespace] = q
	return q, nil
}

// ProductBacklog returns the product backlog queue.
func (a *App) ProductBacklog(ctx context.Context) (*backlog.Queue, error) {
	return a.Queue(ctx, a.Config.Index.Namespaces.Backlog)
}

// SprintBacklog returns the sprint backlog queue.
func (a *App) SprintBacklog(ctx context.Context) (*backlog.Queue, error) {
	return a.Queue(ctx, a.Config.Index.Namespaces.SprintBacklog)
}

// ProjectContext returns the vision and structure store.
func (a *App) ProjectContext(ctx context.Context) (*project.Context, error) {
	idx, err := a.Index(ctx)
	if err != nil {
		return nil, err
	}
	oracle, err := a.Oracle(ctx)
	if err != nil {
		return nil, err
	}
	return project.NewContext(idx, oracle, a.Config.Index.Namespaces.Context), nil
}

// Indexer returns a code corpus indexer over the repository.
func (a *App) Indexer(ctx context.Context) (*codebase.Indexer, error) {
	idx, err := a.Index(ctx)
	if err != nil {
		return nil, err
	}
	oracle, err := a.Oracle(ctx)
	if err != nil {
		return nil, err
	}
	return codebase.NewIndexer(idx, oracle, a.Config.Index.Namespaces.Codebase, a.Config.Git.RepoPath, a.Logger.Named("codebase"))
}

// Searcher returns a code corpus searcher.
func (a *App) Searcher(ctx context.Context) (*codebase.Searcher, error) {
	idx, err := a.Index(ctx)
	if err != nil {
		return nil, err
	}
	oracle, err := a.Oracle(ctx)
	if err != nil {
		return nil, err
	}
	return codebase.NewSearcher(idx, oracle, a.Config.Index.Namespaces.Codebase), nil
}

// ProductOwner creates the product owner over the product backlog.
func (a *App) ProductOwner(ctx context.Context) (*planning.ProductOwner, error) {
	oracle, err := a.Oracle(ctx)
	if err != nil {
		return nil, err
	}
	product, err := a.ProductBacklog(ctx)
	if err != nil {
		return nil, err
	}
	return planning.NewProductOwner(oracle, product, a.Logger.Named("product_owner")), nil
}

// Architect creates the architect over the project context and code store.
func (a *App) Architect(ctx context.Context) (*planning.Architect, error) {
	oracle, err := a.Oracle(ctx)
	if err != nil {
		return nil, err
	}
	pc, err := a.ProjectContext(ctx)
	if err != nil {
		return nil, err
	}
	store, err := a.Store(ctx)
	if err != nil {
		return nil, err
	}
	return planning.NewArchitect(oracle, pc, store, a.Logger.Named("architect")), nil
}

// SprintPlanner creates the planner moving product items into the sprint.
func (a *App) SprintPlanner(ctx context.Context) (*planning.SprintPlanner, error) {
	oracle, err := a.Oracle(ctx)
	if err != nil {
		return nil, err
	}
	product, err := a.ProductBacklog(ctx)
	if err != nil {
		return nil, err
	}
	sprint, err := a.SprintBacklog(ctx)
	if err != nil {
		return nil, err
	}
	pc, err := a.ProjectContext(ctx)
	if err != nil {
		return nil, err
	}
	return planning.NewSprintPlanner(oracle, product, sprint, pc, a.Config.ProgramManagement.ItemsPerSprint, a.Logger.Named("planner")), nil
}

// Driver wires the developer pipeline into a standup driver over the
// sprint backlog.
func (a *App) Driver(ctx context.Context) (*standup.Driver, error) {
	oracle, err := a.Oracle(ctx)
	if err != nil {
		return nil, err
	}
	sprint, err := a.SprintBacklog(ctx)
	if err != nil {
		return nil, err
	}
	pc, err := a.ProjectContext(ctx)
	if err != nil {
		return nil, err
	}
	store, err := a.Store(ctx)
	if err != nil {
		return nil, err
	}
	searcher, err := a.Searcher(ctx)
	if err != nil {
		return nil, err
	}

	dev := a.Config.Developer
	logger := a.Logger.Named("developer")
	locator := developer.NewLocator(searcher, oracle, dev.TopK)
	router := developer.NewRouter(locator, oracle, store, developer.NewPathLocks(), logger)

	opts := standup.Options{
		Workers:      a.Config.Standup.Workers,
		TaskRetries:  a.Config.Standup.TaskRetries,
		RetryBackoff: a.Config.Standup.RetryBackoff,
		Assignee:     dev.Name,
		Metrics:      a.Metrics,
		Logger:       a.Logger.Named("standup"),
	}
	if a.Config.Standup.ReindexAfterItem {
		indexer, err := a.Indexer(ctx)
		if err != nil {
			return nil, err
		}
		opts.Reindexer = indexer
	}
	return standup.NewDriver(sprint, developer.NewDecomposer(oracle, dev.MaxTasks), router, pc, opts), nil
}

// Close saves every loaded backlog and releases the index.
func (a *App) Close() error {
	var errs []error
	for ns, q := range a.queues {
		if err := backlog.SaveSnapshot(backlog.SnapshotPath(a.Config.StateDir, ns), q); err != nil {
			errs = append(errs, err)
		}
	}
	if a.idx != nil {
		if err := a.idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close index: %w", err))
		}
	}
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}
