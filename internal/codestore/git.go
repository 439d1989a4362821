package codestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Commit is one entry of the repository history.
type Commit struct {
	ID      string
	Author  string
	Date    time.Time
	Message string
}

// GitStore implements Store on a local git working tree. Git operations are
// serialized because concurrent commands contend for the index lock.
type GitStore struct {
	mu          sync.Mutex
	repoPath    string
	authorName  string
	authorEmail string
}

// GitOption customizes a GitStore.
type GitOption func(*GitStore)

// WithAuthor sets the identity used for commits.
func WithAuthor(name, email string) GitOption {
	return func(g *GitStore) {
		g.authorName = name
		g.authorEmail = email
	}
}

// NewGitStore opens the repository at repoPath, initializing it when it is
// not a git repository yet.
func NewGitStore(ctx context.Context, repoPath string, opts ...GitOption) (*GitStore, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("invalid repo path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create repo directory: %w", err)
	}

	g := &GitStore{
		repoPath:    abs,
		authorName:  "SprintSwarm",
		authorEmail: "sprintswarm@localhost",
	}
	for _, opt := range opts {
		opt(g)
	}

	if _, err := os.Stat(filepath.Join(abs, ".git")); errors.Is(err, os.ErrNotExist) {
		if _, err := g.git(ctx, "init"); err != nil {
			return nil, unavailable("initialize repository", err)
		}
	}
	return g, nil
}

// RepoPath returns the absolute path of the working tree.
func (g *GitStore) RepoPath() string {
	return g.repoPath
}

// resolve maps a repository-relative path such as "./src/a.py" to an
// absolute path, rejecting anything that leaves the working tree.
func (g *GitStore) resolve(path string) (abs, rel string, err error) {
	cleaned := strings.TrimSpace(path)
	if cleaned == "" {
		return "", "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	switch {
	case filepath.IsAbs(cleaned) && within(g.repoPath, cleaned):
		abs = filepath.Clean(cleaned)
	case filepath.IsAbs(cleaned):
		// Oracles often answer "/src/a.py" meaning the repository root.
		abs = filepath.Join(g.repoPath, strings.TrimLeft(cleaned, "/"))
	default:
		abs = filepath.Join(g.repoPath, cleaned)
	}

	rel, err = filepath.Rel(g.repoPath, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%w: %s is outside the repository", ErrInvalidPath, path)
	}
	if rel == ".git" || strings.HasPrefix(rel, ".git"+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%w: %s is inside .git", ErrInvalidPath, path)
	}
	return abs, filepath.ToSlash(rel), nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, filepath.Clean(path))
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// GetContent reads a file from the working tree.
func (g *GitStore) GetContent(ctx context.Context, path string) (string, error) {
	abs, _, err := g.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return "", unavailable("read file", err)
	}
	return string(data), nil
}

// Create writes a new file, creating parent directories, and commits it.
// An existing file is overwritten.
func (g *GitStore) Create(ctx context.Context, path, content string) error {
	return g.write(ctx, path, content, false, "Create new file: ")
}

// Update replaces an existing file and commits it.
func (g *GitStore) Update(ctx context.Context, path, content string) error {
	return g.write(ctx, path, content, true, "Update file: ")
}

func (g *GitStore) write(ctx context.Context, path, content string, mustExist bool, messagePrefix string) error {
	abs, rel, err := g.resolve(path)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if mustExist {
		if _, err := os.Stat(abs); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return unavailable("create directory", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return unavailable("write file", err)
	}

	if _, err := g.git(ctx, "add", "--", rel); err != nil {
		return unavailable("stage file", err)
	}

	// Nothing to commit when the content is unchanged.
	if _, err := g.git(ctx, "diff", "--cached", "--quiet", "--", rel); err == nil {
		return nil
	}

	// The commit is limited to rel so nothing else staged rides along, and a
	// failed commit leaves rel unstaged.
	if _, err := g.git(ctx, "commit", "-m", messagePrefix+rel, "--", rel); err != nil {
		g.unstage(ctx, rel)
		return unavailable("commit file", err)
	}
	return nil
}

func (g *GitStore) unstage(ctx context.Context, rel string) {
	if _, err := g.git(ctx, "rev-parse", "--verify", "HEAD"); err != nil {
		// Nothing is committed yet, so the path only needs to leave the index.
		_, _ = g.git(ctx, "rm", "--cached", "-q", "--", rel)
		return
	}
	_, _ = g.git(ctx, "reset", "-q", "HEAD", "--", rel)
}

// CreateBranch creates and checks out a new branch.
func (g *GitStore) CreateBranch(ctx context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := g.git(ctx, "checkout", "-b", name); err != nil {
		return unavailable("create branch", err)
	}
	return nil
}

// History returns up to limit commits, newest first. A repository without
// commits has an empty history.
func (g *GitStore) History(ctx context.Context, limit int) ([]Commit, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := g.git(ctx, "rev-parse", "--verify", "HEAD"); err != nil {
		return nil, nil
	}

	args := []string{"log", "--format=%H%x1f%an%x1f%aI%x1f%s%x1e"}
	if limit > 0 {
		args = append(args, fmt.Sprintf("-n%d", limit))
	}
	out, err := g.git(ctx, args...)
	if err != nil {
		return nil, unavailable("read history", err)
	}

	var commits []Commit
	for _, record := range strings.Split(out, "\x1e") {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		fields := strings.Split(record, "\x1f")
		if len(fields) != 4 {
			continue
		}
		date, _ := time.Parse(time.RFC3339, fields[2])
		commits = append(commits, Commit{ID: fields[0], Author: fields[1], Date: date, Message: fields[3]})
	}
	return commits, nil
}

// git runs a git subcommand in the working tree and returns its stdout.
func (g *GitStore) git(ctx context.Context, args ...string) (string, error) {
	full := append([]string{
		"-c", "user.name=" + g.authorName,
		"-c", "user.email=" + g.authorEmail,
		"-c", "commit.gpgsign=false",
	}, args...)

	cmd := exec.CommandContext(ctx, "git", full...)
	cmd.Dir = g.repoPath
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("git %s: %w", args[0], ctxErr)
		}
		return "", fmt.Errorf("git %s failed: %s: %w", args[0], strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}

var _ Store = (*GitStore)(nil)
