package planning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chasedowdell/SprintSwarm/internal/codestore"
	"github.com/chasedowdell/SprintSwarm/internal/llm"
	"github.com/chasedowdell/SprintSwarm/internal/project"
)

const structureMaxTokens = 4000

// ErrNoStructure is returned when the architect's reply holds no JSON object.
var ErrNoStructure = errors.New("no project structure in reply")

// Architect designs the project structure and creates skeleton files.
type Architect struct {
	oracle  llm.Completer
	context *project.Context
	store   codestore.Store
	logger  *zap.Logger
}

// NewArchitect creates an Architect.
func NewArchitect(oracle llm.Completer, pc *project.Context, store codestore.Store, logger *zap.Logger) *Architect {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Architect{oracle: oracle, context: pc, store: store, logger: logger}
}

// CreateProject stores the vision, asks the oracle for the project structure,
// stores it and creates every planned file that does not exist yet with a
// one-line purpose comment.
func (a *Architect) CreateProject(ctx context.Context, vision project.Vision) (project.Structure, error) {
	if err := validate.Struct(vision); err != nil {
		return project.Structure{}, fmt.Errorf("invalid vision: %w", err)
	}
	if err := a.context.SaveVision(ctx, vision); err != nil {
		return project.Structure{}, err
	}

	prompt, err := render(structureTmpl, vision)
	if err != nil {
		return project.Structure{}, err
	}
	reply, err := a.oracle.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}, structureMaxTokens)
	if err != nil {
		return project.Structure{}, fmt.Errorf("failed to design project structure: %w", err)
	}

	raw, err := ExtractJSON(reply)
	if err != nil {
		return project.Structure{}, err
	}
	structure, err := a.context.SaveStructure(ctx, raw)
	if err != nil {
		return project.Structure{}, err
	}

	created := 0
	for _, f := range structure.Files {
		path := f.FilePath()
		if path == "" {
			continue
		}
		_, err := a.store.GetContent(ctx, path)
		if err == nil {
			continue
		}
		if !errors.Is(err, codestore.ErrNotFound) {
			return structure, fmt.Errorf("failed to check %s: %w", path, err)
		}
		if err := a.store.Create(ctx, path, "# "+f.Purpose+"\n"); err != nil {
			return structure, fmt.Errorf("failed to create skeleton %s: %w", path, err)
		}
		created++
	}

	a.logger.Info("project structure created",
		zap.String("paradigm", structure.ArchitectureParadigm),
		zap.Int("files", len(structure.Files)),
		zap.Int("created", created))
	return structure, nil
}

// ExtractJSON returns the text from the first '{' to the last '}' of reply.
func ExtractJSON(reply string) (string, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return "", ErrNoStructure
	}
	return reply[start : end+1], nil
}
