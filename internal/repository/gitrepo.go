package repository

import (
	"context"
	"fmt"

	"github.com/sha1n/relic-search/internal/domain"
)

// DefaultRevision is the revision expression indexed when none is configured.
const DefaultRevision = "HEAD"

// GitRepository exposes a local git repository (bare or with a working tree)
// through the Repository contract. Trees are read from the object database at
// a fixed revision expression, never from the working directory.
type GitRepository struct {
	name string
	dir  string
	url  string
	rev  string
	git  *GitClient
}

// GitOption configures a GitRepository.
type GitOption func(*GitRepository)

// WithRemote mirrors the given remote URL into the repository directory on Sync.
func WithRemote(url string) GitOption {
	return func(r *GitRepository) {
		r.url = url
	}
}

// WithRevision sets the revision expression to index (default HEAD).
func WithRevision(rev string) GitOption {
	return func(r *GitRepository) {
		if rev != "" {
			r.rev = rev
		}
	}
}

// WithGitClient injects a git client (for testing).
func WithGitClient(client *GitClient) GitOption {
	return func(r *GitRepository) {
		r.git = client
	}
}

// NewGitRepository creates a repository view over the git directory dir.
func NewGitRepository(name, dir string, opts ...GitOption) *GitRepository {
	r := &GitRepository{
		name: name,
		dir:  dir,
		rev:  DefaultRevision,
		git:  NewGitClient(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the repository name.
func (r *GitRepository) Name() string {
	return r.name
}

// Dir returns the local directory of the repository.
func (r *GitRepository) Dir() string {
	return r.dir
}

// Remote returns the mirrored remote URL, if any.
func (r *GitRepository) Remote() string {
	return r.url
}

// YoungestRevision returns the commit the configured revision expression resolves to.
func (r *GitRepository) YoungestRevision(ctx context.Context) (domain.Revision, error) {
	sha, err := r.git.RevParse(ctx, r.dir, r.rev)
	if err != nil {
		return "", err
	}
	return domain.Revision(sha), nil
}

// Node resolves a rooted path to a node at the configured revision.
func (r *GitRepository) Node(ctx context.Context, path string) (Node, error) {
	path = NormalizePath(path)
	if path == RootPath {
		return &gitNode{repo: r, path: RootPath, entry: TreeEntry{Type: "tree", Size: -1}}, nil
	}

	rel := relativePath(path)
	entries, err := r.git.ListTree(ctx, r.dir, r.rev, rel)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.Path == rel {
			return &gitNode{repo: r, path: path, entry: entry}, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", path, ErrNodeNotFound)
}

// Sync clones the remote on first use and fetches and resets it afterwards.
// Repositories without a remote are left untouched.
func (r *GitRepository) Sync(ctx context.Context) error {
	if r.url == "" {
		return nil
	}

	if !r.git.IsGitRepository(ctx, r.dir) {
		return r.git.Clone(ctx, r.url, r.dir)
	}

	if err := r.git.Fetch(ctx, r.dir); err != nil {
		return err
	}
	return r.git.Reset(ctx, r.dir)
}

// ChangedPaths returns the rooted paths changed between two commits.
func (r *GitRepository) ChangedPaths(ctx context.Context, from, to domain.Revision) ([]string, error) {
	files, err := r.git.GetChangedFiles(ctx, r.dir, from.String(), to.String())
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, NormalizePath(f))
	}
	return paths, nil
}

// gitNode is a tree entry of a GitRepository.
type gitNode struct {
	repo  *GitRepository
	path  string
	entry TreeEntry
}

var _ ChildLister = (*gitNode)(nil)

func (n *gitNode) Path() string {
	return n.path
}

func (n *gitNode) Kind() Kind {
	if n.entry.Type == "tree" {
		return KindDirectory
	}
	return KindFile
}

func (n *gitNode) Entries(ctx context.Context) ([]string, error) {
	children, err := n.Children(ctx)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(children))
	for _, child := range children {
		paths = append(paths, child.Path())
	}
	return paths, nil
}

// Children builds child nodes straight from the directory listing.
func (n *gitNode) Children(ctx context.Context) ([]Node, error) {
	if n.Kind() != KindDirectory {
		return nil, fmt.Errorf("%s is not a directory", n.path)
	}

	rel := relativePath(n.path)
	if rel != "" {
		rel += "/"
	}

	entries, err := n.repo.git.ListTree(ctx, n.repo.dir, n.repo.rev, rel)
	if err != nil {
		return nil, err
	}

	children := make([]Node, 0, len(entries))
	for _, entry := range entries {
		children = append(children, &gitNode{repo: n.repo, path: NormalizePath(entry.Path), entry: entry})
	}
	return children, nil
}

func (n *gitNode) ReadContent(ctx context.Context) ([]byte, bool, error) {
	if n.Kind() == KindDirectory || n.entry.Mode == modeSymlink || n.entry.Mode == modeSubmodule || n.entry.Type != "blob" {
		return nil, false, nil
	}
	if n.entry.Size == 0 {
		return []byte{}, true, nil
	}

	content, err := n.repo.git.ReadBlob(ctx, n.repo.dir, n.entry.Object)
	if err != nil {
		return nil, false, err
	}
	return content, true, nil
}

func (n *gitNode) ContentKind() string {
	return ContentKindForPath(n.path)
}
