package codebase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pythonSource = `import os

def fetch(url):
    return os.getenv(url)

@retry(times=3)
def post(url, body):
    return None

class Client:
    def method(self):
        pass
`

const goSource = `package sample

type Server struct{}

type List[T any] struct{}

func Start() error { return nil }

func (s *Server) Serve() {}

func (l List[T]) Len() int { return 0 }
`

func names(funcs []Function) []string {
	out := make([]string, 0, len(funcs))
	for _, fn := range funcs {
		out = append(out, fn.Name)
	}
	return out
}

func TestExtractFunctions_Python(t *testing.T) {
	funcs, err := ExtractFunctions(context.Background(), "src/app.py", []byte(pythonSource))
	require.NoError(t, err)

	assert.Equal(t, []string{"fetch", "post"}, names(funcs), "class methods are not top-level functions")
	assert.Equal(t, 3, funcs[0].StartLine)
	assert.Contains(t, funcs[0].Code, "return os.getenv(url)")
	assert.Contains(t, funcs[1].Code, "@retry(times=3)", "decorators belong to the function")
}

func TestExtractFunctions_Go(t *testing.T) {
	funcs, err := ExtractFunctions(context.Background(), "pkg/server.go", []byte(goSource))
	require.NoError(t, err)

	assert.Equal(t, []string{"Start", "Server.Serve", "List.Len"}, names(funcs))
}

func TestExtractFunctions_Unsupported(t *testing.T) {
	_, err := ExtractFunctions(context.Background(), "README.md", []byte("# hi"))
	assert.Error(t, err)

	assert.True(t, Supported("a/b.PY"))
	assert.False(t, Supported("a/b.rs"))
}

func TestToMatch_FallsBackToKey(t *testing.T) {
	m := toMatch(indexMatch("./src/bar.py:helper_fn", 0.5, nil))
	assert.Equal(t, "./src/bar.py", m.FilePath)
	assert.Equal(t, "helper_fn", m.Symbol)
	assert.Equal(t, "./src/bar.py:helper_fn", ArtifactKey(m.FilePath, m.Symbol))
}
