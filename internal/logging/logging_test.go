package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chasedowdell/SprintSwarm/internal/config"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sprintswarm.log")

	logger, err := New(config.LoggingConfig{Level: "info", Format: "json", FilePath: path}, false)
	require.NoError(t, err)

	logger.Info("cycle finished", zap.String("run_id", "abc"))
	logger.Debug("not written at info level")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cycle finished")
	assert.Contains(t, string(data), `"run_id":"abc"`)
	assert.NotContains(t, string(data), "not written")
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")

	logger, err := New(config.LoggingConfig{Level: "warn", Format: "console", FilePath: path}, true)
	require.NoError(t, err)

	logger.Debug("routing task")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "routing task"))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud", Format: "json"}, false)
	assert.Error(t, err)
}
