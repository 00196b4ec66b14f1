// Package git answers the few questions 'hctorder init' asks about the
// repository a project is created in.
package git

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrGitNotFound is returned when the git binary is not on PATH.
var ErrGitNotFound = errors.New("git not found in PATH")

// Checker provides Git repository inspection for a directory
type Checker struct {
	dir string
}

// NewChecker creates a new Git checker for dir
func NewChecker(dir string) *Checker {
	return &Checker{dir: dir}
}

func (c *Checker) command(args ...string) *exec.Cmd {
	cmd := exec.Command("git", args...)
	cmd.Dir = c.dir
	return cmd
}

// IsGitRepository checks if the directory is within a Git repository
func (c *Checker) IsGitRepository() (bool, error) {
	err := c.command("rev-parse", "--git-dir").Run()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return false, ErrGitNotFound
		}
		// Not in a Git repository
		return false, nil
	}
	return true, nil
}

// GetGitRoot returns the absolute path to the Git repository root
func (c *Checker) GetGitRoot() (string, error) {
	output, err := c.command("rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get Git root: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// IsIgnored reports whether path, relative to the checker's directory, is
// matched by the repository's ignore rules.
func (c *Checker) IsIgnored(path string) (bool, error) {
	err := c.command("check-ignore", "-q", path).Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("failed to check ignore rules for %s: %w", path, err)
}

// Unignored returns the paths that are not ignored. Outside a repository, or
// without git, it returns nil.
func (c *Checker) Unignored(paths ...string) []string {
	isRepo, err := c.IsGitRepository()
	if err != nil || !isRepo {
		return nil
	}
	var out []string
	for _, p := range paths {
		if ignored, err := c.IsIgnored(p); err == nil && !ignored {
			out = append(out, p)
		}
	}
	return out
}
