package indexing

import (
	"context"

	"github.com/sha1n/relic-search/internal/domain"
	"github.com/sha1n/relic-search/internal/repository"
)

// NodeIterator yields repository nodes one at a time.
//
//	for it.Next(ctx) {
//		node := it.Node()
//	}
//	if err := it.Err(); err != nil { ... }
type NodeIterator interface {
	Next(ctx context.Context) bool
	Node() repository.Node
	Err() error
}

// Walker is a lazy depth-first, pre-order traversal yielding file nodes.
// Directories are expanded only when reached, using an explicit stack of
// pending entries; entry order is whatever the repository returns.
// A Walker is forward-only and stops at the first repository failure.
type Walker struct {
	repo    repository.Repository
	pending []pendingEntry
	current repository.Node
	err     error
}

// pendingEntry is a path still to visit. node is set when the parent listing
// already resolved it.
type pendingEntry struct {
	path string
	node repository.Node
}

var _ NodeIterator = (*Walker)(nil)

// NewWalker creates a walker rooted at root.
func NewWalker(repo repository.Repository, root string) *Walker {
	return &Walker{
		repo:    repo,
		pending: []pendingEntry{{path: repository.NormalizePath(root)}},
	}
}

// Next advances to the next file node.
func (w *Walker) Next(ctx context.Context) bool {
	w.current = nil
	if w.err != nil {
		return false
	}

	for len(w.pending) > 0 {
		if err := ctx.Err(); err != nil {
			w.err = err
			return false
		}

		next := w.pending[len(w.pending)-1]
		w.pending = w.pending[:len(w.pending)-1]

		node := next.node
		if node == nil {
			var err error
			if node, err = w.repo.Node(ctx, next.path); err != nil {
				w.fail(next.path, "get node", err)
				return false
			}
		}

		if node.Kind() == repository.KindFile {
			w.current = node
			return true
		}

		if err := w.expand(ctx, node); err != nil {
			w.fail(next.path, "list entries", err)
			return false
		}
	}
	return false
}

// expand pushes the children of dir in reverse so the first entry is visited first.
func (w *Walker) expand(ctx context.Context, dir repository.Node) error {
	if lister, ok := dir.(repository.ChildLister); ok {
		children, err := lister.Children(ctx)
		if err != nil {
			return err
		}
		for i := len(children) - 1; i >= 0; i-- {
			w.pending = append(w.pending, pendingEntry{path: children[i].Path(), node: children[i]})
		}
		return nil
	}

	entries, err := dir.Entries(ctx)
	if err != nil {
		return err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		w.pending = append(w.pending, pendingEntry{path: entries[i]})
	}
	return nil
}

// Node returns the current file node.
func (w *Walker) Node() repository.Node {
	return w.current
}

// Err returns the failure that stopped the walk, if any.
func (w *Walker) Err() error {
	return w.err
}

func (w *Walker) fail(p, op string, err error) {
	w.pending = nil
	w.err = &domain.RepositoryAccessError{Repository: w.repo.Name(), Path: p, Op: op, Err: err}
}

// pathIterator resolves an explicit list of paths to nodes without recursion.
// Directory nodes are passed over and repeated paths are visited once.
type pathIterator struct {
	repo    repository.Repository
	paths   []string
	current repository.Node
	err     error
}

func newPathIterator(repo repository.Repository, paths []string) *pathIterator {
	seen := make(map[string]struct{}, len(paths))
	unique := make([]string, 0, len(paths))
	for _, p := range paths {
		p = repository.NormalizePath(p)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}
	return &pathIterator{repo: repo, paths: unique}
}

func (it *pathIterator) Next(ctx context.Context) bool {
	it.current = nil
	if it.err != nil {
		return false
	}

	for len(it.paths) > 0 {
		if err := ctx.Err(); err != nil {
			it.err = err
			return false
		}

		p := it.paths[0]
		it.paths = it.paths[1:]

		node, err := it.repo.Node(ctx, p)
		if err != nil {
			it.paths = nil
			it.err = &domain.RepositoryAccessError{Repository: it.repo.Name(), Path: p, Op: "get node", Err: err}
			return false
		}
		if node.Kind() == repository.KindFile {
			it.current = node
			return true
		}
	}
	return false
}

func (it *pathIterator) Node() repository.Node {
	return it.current
}

func (it *pathIterator) Err() error {
	return it.err
}
