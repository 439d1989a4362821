package planning

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chasedowdell/SprintSwarm/internal/backlog"
	"github.com/chasedowdell/SprintSwarm/internal/codestore"
	"github.com/chasedowdell/SprintSwarm/internal/index"
	"github.com/chasedowdell/SprintSwarm/internal/llm"
	"github.com/chasedowdell/SprintSwarm/internal/project"
)

// chatOracle answers chats by the first marker found in the user message.
type chatOracle struct {
	mu       sync.Mutex
	replies  map[string]string
	errs     map[string]error
	messages [][]llm.Message
	embedErr error
	// embedErrs fails embedding of the exact texts given.
	embedErrs map[string]error
}

func (o *chatOracle) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return o.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, maxTokens)
}

func (o *chatOracle) Chat(ctx context.Context, messages []llm.Message, maxTokens int) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, messages)
	user := messages[len(messages)-1].Content
	for marker, err := range o.errs {
		if strings.Contains(user, marker) {
			return "", err
		}
	}
	for marker, reply := range o.replies {
		if strings.Contains(user, marker) {
			return reply, nil
		}
	}
	return "", errors.New("unexpected chat")
}

func (o *chatOracle) Embed(ctx context.Context, text string) ([]float32, error) {
	if o.embedErr != nil {
		return nil, o.embedErr
	}
	if err := o.embedErrs[text]; err != nil {
		return nil, err
	}
	return []float32{float32(len(text)), 1}, nil
}

type memStore struct {
	files map[string]string
}

func (s *memStore) GetContent(ctx context.Context, path string) (string, error) {
	c, ok := s.files[path]
	if !ok {
		return "", codestore.ErrNotFound
	}
	return c, nil
}

func (s *memStore) Create(ctx context.Context, path, content string) error {
	s.files[path] = content
	return nil
}

func (s *memStore) Update(ctx context.Context, path, content string) error {
	s.files[path] = content
	return nil
}

var weatherVision = project.Vision{
	Title:       "Weather CLI",
	Description: "A command line weather client",
	Goals:       []string{"fast answers"},
	KeyFeatures: []string{"forecast"},
	Constraints: []string{"python only"},
}

func TestProductOwner_ReceiveVision(t *testing.T) {
	oracle := &chatOracle{replies: map[string]string{
		"Create a product backlog": "Fetch the forecast\n\n  Show alerts \nCache responses\n",
	}}
	product := backlog.New(index.NewMemoryIndex(), index.NamespaceBacklog)
	po := NewProductOwner(oracle, product, zaptest.NewLogger(t))

	items, err := po.ReceiveVision(context.Background(), weatherVision)
	require.NoError(t, err)
	require.Len(t, items, 3)

	got := product.Items()
	require.Len(t, got, 3)
	for i, want := range []string{"Fetch the forecast", "Show alerts", "Cache responses"} {
		assert.Equal(t, want, got[i].Description)
		assert.Equal(t, i, got[i].Priority)
	}

	msgs := oracle.messages[0]
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, SystemPrompt, msgs[0].Content)
	assert.Contains(t, msgs[1].Content, "- forecast")
	assert.Contains(t, msgs[1].Content, "- python only")
	assert.Contains(t, msgs[1].Content, "without numbering or bullets")
}

func TestProductOwner_InvalidVision(t *testing.T) {
	po := NewProductOwner(&chatOracle{}, backlog.New(index.NewMemoryIndex(), index.NamespaceBacklog), nil)
	_, err := po.ReceiveVision(context.Background(), project.Vision{Title: "no description"})
	assert.Error(t, err)
}

func TestProductOwner_OracleFailure(t *testing.T) {
	oracle := &chatOracle{errs: map[string]error{"Create a product backlog": llm.ErrOracleUnavailable}}
	product := backlog.New(index.NewMemoryIndex(), index.NamespaceBacklog)

	_, err := NewProductOwner(oracle, product, nil).ReceiveVision(context.Background(), weatherVision)
	assert.ErrorIs(t, err, llm.ErrOracleUnavailable)
	assert.Zero(t, product.Len())
}

const structureReply = "Here is the structure:\n```json\n" + `{
  "architecture_paradigm": "layered",
  "project_philosophy": "small modules",
  "files": [
    {"path": "./src", "name": "http_client.py", "purpose": "HTTP client wrapper"},
    {"path": "./src", "name": "main.py", "purpose": "Entry point"}
  ]
}` + "\n```\nLet me know."

func TestArchitect_CreateProject(t *testing.T) {
	ctx := context.Background()
	oracle := &chatOracle{replies: map[string]string{"Design the project structure": structureReply}}
	pc := project.NewContext(index.NewMemoryIndex(), oracle, index.NamespaceContext)
	store := &memStore{files: map[string]string{"./src/main.py": "print('existing')\n"}}

	structure, err := NewArchitect(oracle, pc, store, zaptest.NewLogger(t)).CreateProject(ctx, weatherVision)
	require.NoError(t, err)
	assert.Equal(t, "layered", structure.ArchitectureParadigm)
	assert.Len(t, structure.Files, 2)

	assert.Equal(t, "# HTTP client wrapper\n", store.files["./src/http_client.py"])
	assert.Equal(t, "print('existing')\n", store.files["./src/main.py"], "existing files are left alone")

	storedVision, err := pc.Vision(ctx)
	require.NoError(t, err)
	assert.Equal(t, weatherVision, storedVision)

	storedStructure, err := pc.Structure(ctx)
	require.NoError(t, err)
	assert.Equal(t, structure, storedStructure)
}

func TestArchitect_NoJSON(t *testing.T) {
	oracle := &chatOracle{replies: map[string]string{"Design the project structure": "I cannot help with that"}}
	pc := project.NewContext(index.NewMemoryIndex(), oracle, index.NamespaceContext)

	_, err := NewArchitect(oracle, pc, &memStore{files: map[string]string{}}, nil).CreateProject(context.Background(), weatherVision)
	assert.ErrorIs(t, err, ErrNoStructure)
}

func TestExtractJSON(t *testing.T) {
	got, err := ExtractJSON(`noise {"a": {"b": 1}} trailing`)
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": 1}}`, got)

	_, err = ExtractJSON("} before {")
	assert.ErrorIs(t, err, ErrNoStructure)
}

func seedProduct(t *testing.T, descriptions ...string) *backlog.Queue {
	t.Helper()
	q := backlog.New(index.NewMemoryIndex(), index.NamespaceBacklog)
	for i, d := range descriptions {
		require.NoError(t, q.Insert(context.Background(), backlog.NewWorkItem(i, d), []float32{1, float32(i)}))
	}
	return q
}

func TestSprintPlanner_Plan(t *testing.T) {
	ctx := context.Background()
	oracle := &chatOracle{replies: map[string]string{
		"Backlog item: Fetch the forecast": "call the API\nparse the response",
		"Backlog item: Show alerts":        "render alerts",
	}}
	product := seedProduct(t, "Fetch the forecast", "Show alerts", "Cache responses")
	sprint := backlog.New(index.NewMemoryIndex(), index.NamespaceSprintBacklog)
	pc := project.NewContext(index.NewMemoryIndex(), oracle, index.NamespaceContext)
	require.NoError(t, pc.SaveVision(ctx, weatherVision))

	planned, err := NewSprintPlanner(oracle, product, sprint, pc, 2, zaptest.NewLogger(t)).Plan(ctx)
	require.NoError(t, err)
	require.Len(t, planned, 2)
	assert.Len(t, planned[0].Tasks, 2)

	var order []string
	for _, task := range sprint.Items() {
		order = append(order, task.Description)
	}
	assert.Equal(t, []string{"call the API", "parse the response", "render alerts"}, order, "an item's tasks stay contiguous and ordered")

	remaining := product.Items()
	require.Len(t, remaining, 1)
	assert.Equal(t, "Cache responses", remaining[0].Description, "planned items leave the product backlog")

	assert.Contains(t, oracle.messages[0][1].Content, "A command line weather client")
	assert.Contains(t, oracle.messages[0][1].Content, "new line delimited list of tasks")
}

func TestSprintPlanner_AppendsAfterExistingTasks(t *testing.T) {
	ctx := context.Background()
	oracle := &chatOracle{replies: map[string]string{"Backlog item: Show alerts": "render alerts"}}
	sprint := backlog.New(index.NewMemoryIndex(), index.NamespaceSprintBacklog)
	require.NoError(t, sprint.Insert(ctx, backlog.NewWorkItem(4, "leftover"), []float32{1, 1}))

	_, err := NewSprintPlanner(oracle, seedProduct(t, "Show alerts"), sprint, nil, 3, nil).Plan(ctx)
	require.NoError(t, err)

	task, ok := sprint.Get(backlog.ItemID("render alerts"))
	require.True(t, ok)
	assert.Equal(t, 5, task.Priority)
}

func TestSprintPlanner_FailedItemStaysInProduct(t *testing.T) {
	ctx := context.Background()
	oracle := &chatOracle{
		replies: map[string]string{"Backlog item: Show alerts": "render alerts"},
		errs:    map[string]error{"Backlog item: Fetch the forecast": llm.ErrOracleUnavailable},
	}
	product := seedProduct(t, "Fetch the forecast", "Show alerts")
	sprint := backlog.New(index.NewMemoryIndex(), index.NamespaceSprintBacklog)

	planned, err := NewSprintPlanner(oracle, product, sprint, nil, 5, nil).Plan(ctx)
	assert.ErrorIs(t, err, llm.ErrOracleUnavailable)
	require.Len(t, planned, 1)
	assert.Equal(t, "Show alerts", planned[0].Item.Description)

	_, ok := product.Get(backlog.ItemID("Fetch the forecast"))
	assert.True(t, ok)
	assert.Equal(t, 1, sprint.Len())
}

func TestSprintPlanner_EmbedFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	oracle := &chatOracle{
		replies:  map[string]string{"Backlog item": "a\nb"},
		embedErr: llm.ErrOracleUnavailable,
	}
	product := seedProduct(t, "Fetch the forecast")
	sprint := backlog.New(index.NewMemoryIndex(), index.NamespaceSprintBacklog)

	_, err := NewSprintPlanner(oracle, product, sprint, nil, 1, nil).Plan(ctx)
	assert.ErrorIs(t, err, llm.ErrOracleUnavailable)
	assert.Zero(t, sprint.Len())
	assert.Equal(t, 1, product.Len())
}

func TestSprintPlanner_RollbackKeepsQueuedTasks(t *testing.T) {
	ctx := context.Background()
	oracle := &chatOracle{
		replies:   map[string]string{"Backlog item": "write tests\nadd caching"},
		embedErrs: map[string]error{"add caching": llm.ErrOracleUnavailable},
	}
	sprint := backlog.New(index.NewMemoryIndex(), index.NamespaceSprintBacklog)
	require.NoError(t, sprint.Insert(ctx, backlog.NewWorkItem(0, "write tests"), []float32{1, 1}))

	_, err := NewSprintPlanner(oracle, seedProduct(t, "Cache responses"), sprint, nil, 1, nil).Plan(ctx)
	assert.ErrorIs(t, err, llm.ErrOracleUnavailable)
	require.Equal(t, 1, sprint.Len())
	task, ok := sprint.Get(backlog.ItemID("write tests"))
	require.True(t, ok)
	assert.Equal(t, 0, task.Priority)
}

func TestSprintPlanner_SkipsQueuedTasks(t *testing.T) {
	ctx := context.Background()
	oracle := &chatOracle{replies: map[string]string{"Backlog item": "write tests\nadd caching"}}
	sprint := backlog.New(index.NewMemoryIndex(), index.NamespaceSprintBacklog)
	require.NoError(t, sprint.Insert(ctx, backlog.NewWorkItem(0, "write tests"), []float32{1, 1}))

	planned, err := NewSprintPlanner(oracle, seedProduct(t, "Cache responses"), sprint, nil, 1, nil).Plan(ctx)
	require.NoError(t, err)
	require.Len(t, planned, 1)
	require.Len(t, planned[0].Tasks, 1)
	assert.Equal(t, "add caching", planned[0].Tasks[0].Description)
	assert.Equal(t, 1, planned[0].Tasks[0].Priority)
	assert.Equal(t, 2, sprint.Len())
}
