package developer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chasedowdell/SprintSwarm/internal/backlog"
	"github.com/chasedowdell/SprintSwarm/internal/codebase"
	"github.com/chasedowdell/SprintSwarm/internal/codestore"
	"github.com/chasedowdell/SprintSwarm/internal/llm"
)

func newTestRouter(t *testing.T, oracle *scriptedOracle, searcher *stubSearcher, store *memStore) *Router {
	t.Helper()
	return NewRouter(NewLocator(searcher, oracle, 5), oracle, store, nil, zaptest.NewLogger(t))
}

func testTask(desc string) Task {
	return Task{Description: desc, Item: backlog.NewWorkItem(0, "Build an HTTP client")}
}

func TestRouter_CreateNew(t *testing.T) {
	oracle := (&scriptedOracle{}).
		on(markChooseFile, "new: ./src/foo.py").
		on(markNewFile, "def foo():\n    pass\n")
	store := newMemStore()
	rt := newTestRouter(t, oracle, &stubSearcher{}, store)

	out, err := rt.Route(context.Background(), testTask("write foo"))
	require.NoError(t, err)

	assert.Equal(t, CreateNew{FilePath: "./src/foo.py"}, out.Decision)
	assert.Equal(t, codestore.ChangeRequest{FilePath: "./src/foo.py", Content: "def foo():\n    pass\n", Mode: codestore.ModeCreate}, out.Request)
	assert.Equal(t, []codestore.ChangeRequest{out.Request}, store.emitted(), "exactly one request is emitted")
	assert.Equal(t, []State{StateStart, StateLocateCandidate, StateNewFileDecision, StateEmit, StateDone}, out.States)
}

func TestRouter_ExtendExisting(t *testing.T) {
	oracle := (&scriptedOracle{}).
		on(markChooseFile, "update:./src/bar.py").
		on(markExtend, "def bar():\n    return 2\n")
	store := newMemStore()
	store.files["./src/bar.py"] = "def bar():\n    return 1\n"
	rt := newTestRouter(t, oracle, &stubSearcher{}, store)

	out, err := rt.Route(context.Background(), testTask("make bar return 2"))
	require.NoError(t, err)

	assert.Equal(t, ExtendExisting{FilePath: "./src/bar.py"}, out.Decision)
	assert.Contains(t, oracle.promptWith(markExtend), "def bar():\n    return 1\n", "current content is sent to the oracle")
	assert.Equal(t, codestore.ChangeRequest{FilePath: "./src/bar.py", Content: "def bar():\n    return 2\n", Mode: codestore.ModeUpdate}, out.Request)
	assert.Len(t, store.emitted(), 1)
}

func TestRouter_UpdateOfMissingFileCreatesIt(t *testing.T) {
	oracle := (&scriptedOracle{}).
		on(markChooseFile, "update: ./src/missing.py").
		on(markNewFile, "x = 1\n")
	store := newMemStore()
	rt := newTestRouter(t, oracle, &stubSearcher{}, store)

	out, err := rt.Route(context.Background(), testTask("add x"))
	require.NoError(t, err)
	assert.Equal(t, CreateNew{FilePath: "./src/missing.py"}, out.Decision)
	assert.Equal(t, codestore.ModeCreate, out.Request.Mode)
}

func TestRouter_ReuseExisting(t *testing.T) {
	oracle := (&scriptedOracle{}).
		on(markLocate, "./src/bar.py:helper_fn").
		on(markReuse, "def helper_fn():\n    return 'new'\n")
	searcher := &stubSearcher{matches: []codebase.Match{{ArtifactKey: "./src/bar.py:helper_fn", FilePath: "./src/bar.py", Symbol: "helper_fn"}}}
	store := newMemStore()
	store.files["./src/bar.py"] = "def helper_fn():\n    return 'old'\n"
	rt := newTestRouter(t, oracle, searcher, store)

	out, err := rt.Route(context.Background(), testTask("update helper"))
	require.NoError(t, err)

	assert.Equal(t, ReuseExisting{ArtifactKey: "./src/bar.py:helper_fn", FilePath: "./src/bar.py", Symbol: "helper_fn"}, out.Decision)
	prompt := oracle.promptWith(markReuse)
	assert.Contains(t, prompt, "return 'old'")
	assert.Contains(t, prompt, "helper_fn")
	assert.Contains(t, prompt, "Build an HTTP client")
	assert.Equal(t, codestore.ModeUpdate, out.Request.Mode)
	assert.Equal(t, "def helper_fn():\n    return 'new'\n", store.files["./src/bar.py"])
	assert.Equal(t, []State{StateStart, StateLocateCandidate, StateReuseDecision, StateEmit, StateDone}, out.States)
}

func TestRouter_FilePromptsCarryProjectContext(t *testing.T) {
	oracle := (&scriptedOracle{}).
		on(markChooseFile, "update:./client.py").
		on(markExtend, "class Client: pass\n")
	store := newMemStore()
	store.files["./client.py"] = "class Client: ...\n"
	rt := newTestRouter(t, oracle, &stubSearcher{}, store)

	task := testTask("add a retry loop")
	task.Vision = "A library for talking to REST services"
	task.Paradigm = "layered"
	_, err := rt.Route(context.Background(), task)
	require.NoError(t, err)

	for _, marker := range []string{markChooseFile, markExtend} {
		prompt := oracle.promptWith(marker)
		assert.Contains(t, prompt, "Build an HTTP client", "item description in %q prompt", marker)
		assert.Contains(t, prompt, "A library for talking to REST services")
		assert.Contains(t, prompt, "layered architecture paradigm")
	}
}

func TestRouter_NewFilePromptCarriesItem(t *testing.T) {
	oracle := (&scriptedOracle{}).
		on(markChooseFile, "new:./client.py").
		on(markNewFile, "class Client: pass\n")
	rt := newTestRouter(t, oracle, &stubSearcher{}, newMemStore())

	_, err := rt.Route(context.Background(), testTask("write the client"))
	require.NoError(t, err)
	assert.Contains(t, oracle.promptWith(markChooseFile), "Build an HTTP client")
	assert.Contains(t, oracle.promptWith(markNewFile), "Build an HTTP client")
}

func TestRouter_MalformedArtifactKey(t *testing.T) {
	oracle := (&scriptedOracle{}).on(markLocate, "helper_fn")
	searcher := &stubSearcher{matches: []codebase.Match{{ArtifactKey: "./src/bar.py:helper_fn"}}}
	store := newMemStore()
	rt := newTestRouter(t, oracle, searcher, store)

	_, err := rt.Route(context.Background(), testTask("update helper"))
	assert.ErrorIs(t, err, ErrMalformedArtifactKey)
	assert.Empty(t, store.emitted())
}

func TestRouter_UnparseableFileDecision(t *testing.T) {
	oracle := (&scriptedOracle{}).on(markChooseFile, "probably the client module")
	store := newMemStore()
	rt := newTestRouter(t, oracle, &stubSearcher{}, store)

	_, err := rt.Route(context.Background(), testTask("t"))
	assert.ErrorIs(t, err, ErrUnroutableTask)
	assert.Empty(t, store.emitted(), "no path is guessed")
}

func TestRouter_ReuseOfMissingFileIsUnroutable(t *testing.T) {
	oracle := (&scriptedOracle{}).on(markLocate, "./gone.py:f")
	searcher := &stubSearcher{matches: []codebase.Match{{ArtifactKey: "./gone.py:f"}}}
	rt := newTestRouter(t, oracle, searcher, newMemStore())

	_, err := rt.Route(context.Background(), testTask("t"))
	assert.ErrorIs(t, err, ErrUnroutableTask)
	assert.ErrorIs(t, err, codestore.ErrNotFound)
}

func TestRouter_OracleFailure(t *testing.T) {
	oracle := (&scriptedOracle{}).
		on(markChooseFile, "new:./a.py").
		fail(markNewFile, llm.ErrOracleUnavailable)
	store := newMemStore()
	rt := newTestRouter(t, oracle, &stubSearcher{}, store)

	out, err := rt.Route(context.Background(), testTask("t"))
	assert.ErrorIs(t, err, llm.ErrOracleUnavailable)
	assert.Equal(t, CreateNew{FilePath: "./a.py"}, out.Decision)
	assert.Empty(t, store.emitted())
}

func TestRouter_EmitFailure(t *testing.T) {
	oracle := (&scriptedOracle{}).
		on(markChooseFile, "new:./a.py").
		on(markNewFile, "a = 1\n")
	store := newMemStore()
	store.writeErr = errors.New("disk full")
	rt := newTestRouter(t, oracle, &stubSearcher{}, store)

	out, err := rt.Route(context.Background(), testTask("t"))
	assert.ErrorIs(t, err, codestore.ErrStoreUnavailable)
	assert.Equal(t, StateEmit, out.States[len(out.States)-1])
}

func TestRouter_InvalidPathIsUnroutable(t *testing.T) {
	oracle := (&scriptedOracle{}).
		on(markChooseFile, "new:../../etc/passwd").
		on(markNewFile, "x\n")
	store := newMemStore()
	store.writeErr = codestore.ErrInvalidPath
	rt := newTestRouter(t, oracle, &stubSearcher{}, store)

	_, err := rt.Route(context.Background(), testTask("t"))
	assert.ErrorIs(t, err, ErrUnroutableTask)
	assert.NotErrorIs(t, err, codestore.ErrStoreUnavailable)
}

func TestRouter_ReleasesPathLocks(t *testing.T) {
	oracle := (&scriptedOracle{}).
		on(markChooseFile, "new:./a.py").
		on(markNewFile, "a = 1\n")
	locks := NewPathLocks()
	rt := NewRouter(NewLocator(&stubSearcher{}, oracle, 5), oracle, newMemStore(), locks, nil)

	_, err := rt.Route(context.Background(), testTask("t"))
	require.NoError(t, err)
	assert.Zero(t, locks.Len())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "new_file_decision", StateNewFileDecision.String())
	assert.Equal(t, "state(42)", State(42).String())
}
