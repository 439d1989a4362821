package developer

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/chasedowdell/SprintSwarm/internal/backlog"
	"github.com/chasedowdell/SprintSwarm/internal/codestore"
	"github.com/chasedowdell/SprintSwarm/internal/llm"
)

var tracer = otel.Tracer("sprintswarm.developer")

// State is a step of the routing state machine.
type State int

const (
	StateStart State = iota
	StateLocateCandidate
	StateReuseDecision
	StateNewFileDecision
	StateEmit
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateLocateCandidate:
		return "locate_candidate"
	case StateReuseDecision:
		return "reuse_decision"
	case StateNewFileDecision:
		return "new_file_decision"
	case StateEmit:
		return "emit"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Task is one decomposed task together with what the router needs to know
// about its item.
type Task struct {
	Description string
	Item        backlog.WorkItem
	Manifest    string
	// Vision is the product description and Paradigm the architecture
	// paradigm of the project structure. Both may be empty.
	Vision   string
	Paradigm string
}

// fileData seeds the data of a file prompt.
func (t Task) fileData() fileData {
	return fileData{
		Vision:   t.Vision,
		Paradigm: t.Paradigm,
		Item:     t.Item.Description,
		Task:     t.Description,
		Manifest: t.Manifest,
	}
}

// Outcome is the result of routing one task.
type Outcome struct {
	Decision Decision
	Request  codestore.ChangeRequest
	// States lists every state visited, StateStart first.
	States []State
}

// Router drives one task from candidate lookup to an emitted change request.
type Router struct {
	locator *Locator
	oracle  llm.Completer
	store   codestore.Store
	emitter *Emitter
	locks   *PathLocks
	logger  *zap.Logger
}

// NewRouter creates a Router. locks may be shared between routers; nil
// creates a private table.
func NewRouter(locator *Locator, oracle llm.Completer, store codestore.Store, locks *PathLocks, logger *zap.Logger) *Router {
	if locks == nil {
		locks = NewPathLocks()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		locator: locator,
		oracle:  oracle,
		store:   store,
		emitter: NewEmitter(store),
		locks:   locks,
		logger:  logger,
	}
}

// run carries the state of one routing pass.
type run struct {
	task     Task
	state    State
	states   []State
	verdict  Verdict
	decision Decision
	request  codestore.ChangeRequest
	unlock   func()
}

func (r *run) enter(s State) {
	r.state = s
	r.states = append(r.states, s)
}

// lock takes the path lock once per run.
func (rt *Router) lock(r *run, filePath string) {
	if r.unlock == nil {
		r.unlock = rt.locks.Lock(filePath)
	}
}

// Route executes the state machine for task and emits exactly one change
// request on success. Any failure aborts the task before anything is emitted
// or after the emit itself failed.
func (rt *Router) Route(ctx context.Context, task Task) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "developer.Route",
		trace.WithAttributes(
			attribute.String("item.id", task.Item.ID),
			attribute.String("task", truncate(task.Description, 120)),
		),
	)
	defer span.End()

	r := &run{task: task}
	defer func() {
		if r.unlock != nil {
			r.unlock()
		}
	}()

	r.enter(StateStart)
	for r.state != StateDone {
		next, err := rt.step(ctx, r)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			rt.logger.Debug("task routing failed",
				zap.String("item_id", task.Item.ID),
				zap.Stringer("state", r.state),
				zap.Error(err))
			return Outcome{Decision: r.decision, States: r.states}, err
		}
		r.enter(next)
	}

	span.SetAttributes(
		attribute.String("decision", string(r.decision.Kind())),
		attribute.String("file_path", r.request.FilePath),
	)
	return Outcome{Decision: r.decision, Request: r.request, States: r.states}, nil
}

func (rt *Router) step(ctx context.Context, r *run) (State, error) {
	switch r.state {
	case StateStart:
		return StateLocateCandidate, nil

	case StateLocateCandidate:
		verdict, err := rt.locator.Locate(ctx, r.task.Description, r.task.Item, r.task.Manifest)
		if err != nil {
			return 0, err
		}
		r.verdict = verdict
		if verdict.Found {
			return StateReuseDecision, nil
		}
		return StateNewFileDecision, nil

	case StateReuseDecision:
		return StateEmit, rt.reuse(ctx, r)

	case StateNewFileDecision:
		return StateEmit, rt.chooseFile(ctx, r)

	case StateEmit:
		if err := rt.emitter.Emit(ctx, r.request); err != nil {
			return 0, routeError(err)
		}
		return StateDone, nil

	default:
		return 0, fmt.Errorf("no transition from state %s", r.state)
	}
}

func (rt *Router) reuse(ctx context.Context, r *run) error {
	filePath, symbol, err := ParseArtifactKey(r.verdict.ArtifactKey)
	if err != nil {
		return err
	}
	r.decision = ReuseExisting{ArtifactKey: r.verdict.ArtifactKey, FilePath: filePath, Symbol: symbol}

	rt.lock(r, filePath)
	code, err := rt.store.GetContent(ctx, filePath)
	if err != nil {
		return routeError(err)
	}

	data := r.task.fileData()
	data.FilePath, data.Symbol, data.Code = filePath, symbol, code
	prompt, err := render(reuseTmpl, data)
	if err != nil {
		return err
	}
	content, err := rt.generate(ctx, prompt)
	if err != nil {
		return err
	}

	r.request = codestore.ChangeRequest{FilePath: filePath, Content: content, Mode: codestore.ModeUpdate}
	return nil
}

func (rt *Router) chooseFile(ctx context.Context, r *run) error {
	prompt, err := render(chooseFileTmpl, r.task.fileData())
	if err != nil {
		return err
	}
	reply, err := rt.oracle.Complete(ctx, prompt, shortMaxTokens)
	if err != nil {
		return fmt.Errorf("failed to choose file: %w", err)
	}
	decision, err := ParseFileDecision(reply)
	if err != nil {
		return err
	}

	rt.lock(r, decision.Path())
	if ext, ok := decision.(ExtendExisting); ok {
		code, err := rt.store.GetContent(ctx, ext.FilePath)
		switch {
		case err == nil:
			r.decision = ext
			return rt.extend(ctx, r, ext.FilePath, code)
		case errors.Is(err, codestore.ErrNotFound):
			// The oracle asked to update a file that does not exist yet.
			rt.logger.Debug("update target missing, creating it", zap.String("file_path", ext.FilePath))
			decision = CreateNew{FilePath: ext.FilePath}
		default:
			return routeError(err)
		}
	}

	r.decision = decision
	return rt.create(ctx, r, decision.Path())
}

func (rt *Router) create(ctx context.Context, r *run, filePath string) error {
	data := r.task.fileData()
	data.FilePath = filePath
	prompt, err := render(newFileTmpl, data)
	if err != nil {
		return err
	}
	content, err := rt.generate(ctx, prompt)
	if err != nil {
		return err
	}
	r.request = codestore.ChangeRequest{FilePath: filePath, Content: content, Mode: codestore.ModeCreate}
	return nil
}

func (rt *Router) extend(ctx context.Context, r *run, filePath, code string) error {
	data := r.task.fileData()
	data.FilePath, data.Code = filePath, code
	prompt, err := render(extendFileTmpl, data)
	if err != nil {
		return err
	}
	content, err := rt.generate(ctx, prompt)
	if err != nil {
		return err
	}
	r.request = codestore.ChangeRequest{FilePath: filePath, Content: content, Mode: codestore.ModeUpdate}
	return nil
}

func (rt *Router) generate(ctx context.Context, prompt string) (string, error) {
	reply, err := rt.oracle.Complete(ctx, prompt, codeMaxTokens)
	if err != nil {
		return "", fmt.Errorf("failed to generate file content: %w", err)
	}
	return ParseContent(reply)
}

// routeError marks store failures caused by the oracle's choice of target
// as unroutable.
func routeError(err error) error {
	switch {
	case errors.Is(err, codestore.ErrInvalidPath):
		return fmt.Errorf("%w: %w", ErrUnroutableTask, err)
	case errors.Is(err, codestore.ErrNotFound) && !errors.Is(err, codestore.ErrStoreUnavailable):
		return fmt.Errorf("%w: %w", ErrUnroutableTask, err)
	default:
		return err
	}
}
