package developer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedArtifactKey is returned when an artifact key is not exactly
	// one non-empty path and one non-empty symbol joined by a single colon.
	ErrMalformedArtifactKey = errors.New("malformed artifact key")

	// ErrUnroutableTask is returned when an oracle reply cannot be mapped to
	// a routing decision. The task is skipped.
	ErrUnroutableTask = errors.New("unroutable task")
)

// NewFunctionSentinel is the locator reply meaning no existing artifact fits.
const NewFunctionSentinel = "add a new function"

const (
	prefixNew    = "new:"
	prefixUpdate = "update:"
)

// Verdict is the outcome of locating a candidate artifact for a task.
type Verdict struct {
	Found       bool
	ArtifactKey string
}

// NotFound is the verdict for tasks that need a new function.
var NotFound = Verdict{}

// Found returns the verdict naming an existing artifact.
func Found(key string) Verdict {
	return Verdict{Found: true, ArtifactKey: key}
}

// ParseLocatorReply interprets the oracle's answer to the candidate
// selection prompt.
func ParseLocatorReply(reply string) (Verdict, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return Verdict{}, fmt.Errorf("%w: empty locator reply", ErrUnroutableTask)
	}
	if strings.Contains(strings.ToLower(reply), NewFunctionSentinel) {
		return NotFound, nil
	}
	return Found(reply), nil
}

// ParseArtifactKey splits a "path:symbol" key.
func ParseArtifactKey(key string) (filePath, symbol string, err error) {
	if strings.Count(key, ":") != 1 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedArtifactKey, key)
	}
	filePath, symbol, _ = strings.Cut(key, ":")
	filePath = strings.TrimSpace(filePath)
	symbol = strings.TrimSpace(symbol)
	if filePath == "" || symbol == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedArtifactKey, key)
	}
	return filePath, symbol, nil
}

// ParseFileDecision interprets a "new:<path>" or "update:<path>" reply.
// The prefix is matched case-insensitively and whitespace around the path
// is dropped.
func ParseFileDecision(reply string) (Decision, error) {
	reply = strings.TrimSpace(reply)
	lower := strings.ToLower(reply)

	switch {
	case strings.HasPrefix(lower, prefixNew):
		path := strings.TrimSpace(reply[len(prefixNew):])
		if path == "" {
			return nil, fmt.Errorf("%w: %q names no file", ErrUnroutableTask, reply)
		}
		return CreateNew{FilePath: path}, nil
	case strings.HasPrefix(lower, prefixUpdate):
		path := strings.TrimSpace(reply[len(prefixUpdate):])
		if path == "" {
			return nil, fmt.Errorf("%w: %q names no file", ErrUnroutableTask, reply)
		}
		return ExtendExisting{FilePath: path}, nil
	default:
		return nil, fmt.Errorf("%w: expected new:<path> or update:<path>, got %q", ErrUnroutableTask, truncate(reply, 80))
	}
}

// ParseTaskList splits a newline-delimited task list, dropping blanks and
// keeping at most limit entries. A non-positive limit keeps everything.
func ParseTaskList(reply string, limit int) []string {
	var tasks []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		tasks = append(tasks, line)
		if limit > 0 && len(tasks) == limit {
			break
		}
	}
	return tasks
}

// ParseContent validates a whole-file reply. Whitespace-only content is
// rejected so that a failed generation never empties a file.
func ParseContent(reply string) (string, error) {
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("%w: empty file content", ErrUnroutableTask)
	}
	return reply, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
