// Package git reports whether a component's install path lives inside a
// git working tree, so an update does not overwrite a developer checkout
// that has local changes.
package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Level represents the severity of a worktree status.
type Level string

const (
	LevelOK      Level = "ok"      // Not a repository, or a clean one
	LevelWarning Level = "warning" // Uncommitted changes
	LevelError   Level = "error"   // Git operation failed
)

// Status describes the git state of an install path.
type Status struct {
	Path      string // Directory that was inspected
	IsGitRepo bool
	Dirty     bool   // Staged, unstaged or untracked changes under Path
	Branch    string // Current branch name, empty when detached or unknown
	Level     Level
	Message   string
	Error     error
}

// String returns a short human-readable summary.
func (s Status) String() string {
	if !s.IsGitRepo {
		return s.Message
	}
	if s.Branch == "" {
		return s.Message
	}
	return fmt.Sprintf("%s (%s)", s.Message, s.Branch)
}

// CommandRunner runs external commands. Tests substitute a fake.
type CommandRunner interface {
	RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// RunInDir executes name in dir and returns its combined output.
func (ExecRunner) RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Checker inspects install paths.
type Checker struct {
	runner CommandRunner
}

// NewChecker creates a Checker that shells out to git.
func NewChecker() *Checker {
	return &Checker{runner: ExecRunner{}}
}

// NewCheckerWithRunner creates a Checker with a custom command runner.
func NewCheckerWithRunner(runner CommandRunner) *Checker {
	return &Checker{runner: runner}
}

// Available reports whether a git binary can be run.
func (c *Checker) Available(ctx context.Context) bool {
	_, err := c.runner.RunInDir(ctx, "", "git", "--version")
	return err == nil
}

// CheckPath inspects the working tree containing installPath. A file is
// checked through its parent directory; a path that does not exist yet is
// reported as clean.
func (c *Checker) CheckPath(ctx context.Context, installPath string) Status {
	dir, ok := inspectDir(installPath)
	status := Status{Path: dir, Level: LevelOK}
	if !ok {
		status.Message = "install path does not exist"
		return status
	}

	if !c.isGitRepo(ctx, dir) {
		status.Message = "not a git repository"
		return status
	}
	status.IsGitRepo = true

	if branch, err := c.currentBranch(ctx, dir); err == nil && branch != "HEAD" {
		status.Branch = branch
	}

	dirty, err := c.hasChanges(ctx, dir)
	if err != nil {
		status.Level = LevelError
		status.Error = err
		status.Message = fmt.Sprintf("failed to check working tree: %v", err)
		return status
	}
	status.Dirty = dirty
	if dirty {
		status.Level = LevelWarning
		status.Message = "uncommitted changes"
		return status
	}
	status.Message = "clean"
	return status
}

// inspectDir returns the directory to run git in for installPath.
func inspectDir(installPath string) (string, bool) {
	info, err := os.Stat(installPath)
	if err != nil {
		return filepath.Dir(installPath), false
	}
	if info.IsDir() {
		return installPath, true
	}
	return filepath.Dir(installPath), true
}

func (c *Checker) isGitRepo(ctx context.Context, dir string) bool {
	out, err := c.runner.RunInDir(ctx, dir, "git", "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "true"
}

func (c *Checker) currentBranch(ctx context.Context, dir string) (string, error) {
	out, err := c.runner.RunInDir(ctx, dir, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// hasChanges limits the porcelain listing to dir so an install path nested
// in a larger repository only sees its own changes.
func (c *Checker) hasChanges(ctx context.Context, dir string) (bool, error) {
	out, err := c.runner.RunInDir(ctx, dir, "git", "status", "--porcelain", "--", ".")
	if err != nil {
		return false, fmt.Errorf("git status failed: %w", err)
	}
	return strings.TrimSpace(string(out)) != "", nil
}
