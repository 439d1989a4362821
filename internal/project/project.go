// Package project holds the shared project context: the product vision and
// the architect's project structure.
package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/chasedowdell/SprintSwarm/internal/index"
	"github.com/chasedowdell/SprintSwarm/internal/llm"
)

// Record ids in the context namespace.
const (
	VisionID    = "vision_context"
	StructureID = "structure_context"
)

// ErrNoContext is returned when the vision or structure has not been stored yet.
var ErrNoContext = errors.New("project context not initialized")

// Vision is the customer's description of the product.
type Vision struct {
	Title       string   `json:"title" yaml:"title" validate:"required"`
	Description string   `json:"description" yaml:"description" validate:"required"`
	Goals       []string `json:"goals" yaml:"goals"`
	KeyFeatures []string `json:"key_features" yaml:"key_features"`
	Constraints []string `json:"constraints" yaml:"constraints"`
}

// FileEntry is one file planned by the architect.
type FileEntry struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Purpose string `json:"purpose"`
}

// FilePath joins the entry's directory and name.
func (f FileEntry) FilePath() string {
	if f.Name == "" {
		return f.Path
	}
	joined := path.Join(f.Path, f.Name)
	if strings.HasPrefix(f.Path, "./") && !strings.HasPrefix(joined, "./") {
		joined = "./" + joined
	}
	return joined
}

// Structure is the architect's plan for the repository layout.
type Structure struct {
	ArchitectureParadigm string      `json:"architecture_paradigm"`
	ProjectPhilosophy    string      `json:"project_philosophy"`
	Files                []FileEntry `json:"files"`
}

// RenderManifest renders the files as an "id,file path,file name,purpose" table.
func (s Structure) RenderManifest() string {
	var sb strings.Builder
	sb.WriteString("id,file path,file name,purpose\n")
	for i, f := range s.Files {
		sb.WriteString(strconv.Itoa(i))
		sb.WriteByte(',')
		sb.WriteString(f.Path)
		sb.WriteByte(',')
		sb.WriteString(f.Name)
		sb.WriteByte(',')
		sb.WriteString(f.Purpose)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Context stores and loads the project context in the index.
type Context struct {
	idx       index.Index
	embedder  llm.Embedder
	namespace string
}

// NewContext creates a Context over namespace of idx.
func NewContext(idx index.Index, embedder llm.Embedder, namespace string) *Context {
	return &Context{idx: idx, embedder: embedder, namespace: namespace}
}

// SaveVision embeds the vision title and stores the vision.
func (c *Context) SaveVision(ctx context.Context, v Vision) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode vision: %w", err)
	}
	return c.save(ctx, VisionID, v.Title, index.Metadata{"title": v.Title, "vision": string(data)})
}

// Vision loads the stored vision.
func (c *Context) Vision(ctx context.Context) (Vision, error) {
	var v Vision
	meta, err := c.load(ctx, VisionID)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal([]byte(meta["vision"]), &v); err != nil {
		return v, fmt.Errorf("failed to decode vision: %w", err)
	}
	return v, nil
}

// SaveStructure stores the raw JSON of a project structure after checking it decodes.
func (c *Context) SaveStructure(ctx context.Context, raw string) (Structure, error) {
	s, err := ParseStructure(raw)
	if err != nil {
		return s, err
	}
	return s, c.save(ctx, StructureID, raw, index.Metadata{"project_structure": raw})
}

// Structure loads the stored project structure.
func (c *Context) Structure(ctx context.Context) (Structure, error) {
	meta, err := c.load(ctx, StructureID)
	if err != nil {
		return Structure{}, err
	}
	return ParseStructure(meta["project_structure"])
}

func (c *Context) save(ctx context.Context, id, embedText string, meta index.Metadata) error {
	vec, err := c.embedder.Embed(ctx, embedText)
	if err != nil {
		return fmt.Errorf("failed to embed %s: %w", id, err)
	}
	if err := c.idx.Upsert(ctx, c.namespace, index.Record{ID: id, Vector: vec, Metadata: meta}); err != nil {
		return fmt.Errorf("failed to store %s: %w", id, err)
	}
	return nil
}

func (c *Context) load(ctx context.Context, id string) (index.Metadata, error) {
	rec, err := c.idx.Fetch(ctx, c.namespace, id)
	if errors.Is(err, index.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", id, ErrNoContext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", id, err)
	}
	return rec.Metadata, nil
}

// ParseStructure decodes a JSON project structure.
func ParseStructure(raw string) (Structure, error) {
	var s Structure
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return s, fmt.Errorf("failed to decode project structure: %w", err)
	}
	return s, nil
}
