package repository

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CommandExecutor abstracts command execution for testing.
type CommandExecutor interface {
	// Run executes a command and returns its standard output.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// DefaultExecutor executes commands using os/exec.
type DefaultExecutor struct{}

// Run executes a command and returns its standard output.
func (e *DefaultExecutor) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Include stderr in error message for debugging
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}

	return stdout.Bytes(), nil
}

// Git object modes with special meaning for indexing.
const (
	modeSymlink   = "120000"
	modeSubmodule = "160000"
)

// TreeEntry is a single line of `git ls-tree -l` output.
type TreeEntry struct {
	Mode   string
	Type   string // blob, tree or commit
	Object string
	Size   int64 // -1 for trees and submodules
	Path   string
}

// GitClient executes git commands.
type GitClient struct {
	executor CommandExecutor
}

// NewGitClient creates a new GitClient with the default command executor.
func NewGitClient() *GitClient {
	return &GitClient{
		executor: &DefaultExecutor{},
	}
}

// NewGitClientWithExecutor creates a GitClient with a custom executor (for testing).
func NewGitClientWithExecutor(executor CommandExecutor) *GitClient {
	return &GitClient{
		executor: executor,
	}
}

// Clone performs a shallow clone of the repository.
// Uses --depth 1 and --single-branch for efficiency.
func (g *GitClient) Clone(ctx context.Context, url, destDir string) error {
	_, err := g.executor.Run(ctx, "", "git", "clone",
		"--depth", "1",
		"--single-branch",
		url,
		destDir,
	)
	if err != nil {
		return fmt.Errorf("git clone failed: %w", err)
	}
	return nil
}

// Fetch fetches the latest changes from the remote, keeping the clone shallow.
func (g *GitClient) Fetch(ctx context.Context, repoDir string) error {
	if _, err := g.executor.Run(ctx, repoDir, "git", "fetch", "--depth", "1"); err != nil {
		return fmt.Errorf("git fetch failed: %w", err)
	}
	return nil
}

// Reset performs a hard reset to origin/HEAD.
func (g *GitClient) Reset(ctx context.Context, repoDir string) error {
	if _, err := g.executor.Run(ctx, repoDir, "git", "reset", "--hard", "origin/HEAD"); err != nil {
		return fmt.Errorf("git reset failed: %w", err)
	}
	return nil
}

// RevParse resolves a revision expression to a commit SHA.
func (g *GitClient) RevParse(ctx context.Context, repoDir, rev string) (string, error) {
	output, err := g.executor.Run(ctx, repoDir, "git", "rev-parse", "--verify", rev+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// ListTree lists tree entries at the given revision.
// An empty relPath lists the top level; a relPath ending in "/" lists the
// children of that directory; any other relPath yields the entry itself.
// Paths are matched literally, so names such as ":memo.txt" or "*.go" are
// never read as pathspec magic or globs.
func (g *GitClient) ListTree(ctx context.Context, repoDir, rev, relPath string) ([]TreeEntry, error) {
	args := []string{"--literal-pathspecs", "ls-tree", "--full-tree", "-l", "-z", rev}
	if relPath != "" {
		args = append(args, "--", relPath)
	}

	output, err := g.executor.Run(ctx, repoDir, "git", args...)
	if err != nil {
		return nil, fmt.Errorf("git ls-tree failed: %w", err)
	}

	return parseTreeEntries(output)
}

// ReadBlob returns the raw bytes of a blob object.
func (g *GitClient) ReadBlob(ctx context.Context, repoDir, object string) ([]byte, error) {
	output, err := g.executor.Run(ctx, repoDir, "git", "cat-file", "blob", object)
	if err != nil {
		return nil, fmt.Errorf("git cat-file failed: %w", err)
	}
	return output, nil
}

// GetChangedFiles returns the files added, copied, modified, renamed or
// type-changed between two commits, relative to the repository root.
func (g *GitClient) GetChangedFiles(ctx context.Context, repoDir, fromCommit, toCommit string) ([]string, error) {
	output, err := g.executor.Run(ctx, repoDir, "git", "diff",
		"--name-only",
		"-z",
		"--diff-filter=ACMRT",
		fromCommit+".."+toCommit,
	)
	if err != nil {
		return nil, fmt.Errorf("git diff failed: %w", err)
	}

	var files []string
	for _, name := range strings.Split(string(output), "\x00") {
		if name != "" {
			files = append(files, name)
		}
	}

	return files, nil
}

// IsGitRepository checks if the given directory is a git repository.
func (g *GitClient) IsGitRepository(ctx context.Context, dir string) bool {
	_, err := g.executor.Run(ctx, dir, "git", "rev-parse", "--git-dir")
	return err == nil
}

// GitDir returns the absolute path of the repository's git directory.
func (g *GitClient) GitDir(ctx context.Context, dir string) (string, error) {
	output, err := g.executor.Run(ctx, dir, "git", "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// parseTreeEntries parses NUL-terminated `git ls-tree -l -z` records:
// "<mode> SP <type> SP <object> SP+ <size> TAB <path>".
func parseTreeEntries(output []byte) ([]TreeEntry, error) {
	var entries []TreeEntry
	for _, record := range strings.Split(string(output), "\x00") {
		if record == "" {
			continue
		}

		meta, path, found := strings.Cut(record, "\t")
		if !found {
			return nil, fmt.Errorf("malformed ls-tree record: %q", record)
		}

		fields := strings.Fields(meta)
		if len(fields) != 4 {
			return nil, fmt.Errorf("malformed ls-tree record: %q", record)
		}

		size := int64(-1)
		if fields[3] != "-" {
			n, err := strconv.ParseInt(fields[3], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed ls-tree size %q: %w", fields[3], err)
			}
			size = n
		}

		entries = append(entries, TreeEntry{
			Mode:   fields[0],
			Type:   fields[1],
			Object: fields[2],
			Size:   size,
			Path:   path,
		})
	}
	return entries, nil
}
