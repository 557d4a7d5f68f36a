package repository

import (
	"context"
	"errors"

	"github.com/sha1n/relic-search/internal/domain"
)

// RootPath is the path of a repository's top-level directory.
const RootPath = "/"

// ErrNodeNotFound indicates no node exists at the requested path.
var ErrNodeNotFound = errors.New("node not found")

// Kind is the type of a repository node.
type Kind int

const (
	// KindFile is a leaf node with content.
	KindFile Kind = iota
	// KindDirectory is a node with child entries.
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Node is a read-only view of a position in a repository tree.
type Node interface {
	// Path is slash-separated and rooted at "/".
	Path() string

	Kind() Kind

	// Entries returns the paths of the node's children, in the order the
	// underlying store reports them. Only valid for directories.
	Entries(ctx context.Context) ([]string, error)

	// ReadContent returns the node's bytes. ok is false when the node has no
	// retrievable content (symbolic links, submodules, directories).
	ReadContent(ctx context.Context) (content []byte, ok bool, err error)

	// ContentKind is a MIME-like type string, possibly with parameters.
	ContentKind() string
}

// ChildLister is implemented by directory nodes that resolve their children
// from a single listing, sparing a lookup per child.
type ChildLister interface {
	Children(ctx context.Context) ([]Node, error)
}

// Repository is a read-only view of a named version-controlled tree.
type Repository interface {
	Name() string
	YoungestRevision(ctx context.Context) (domain.Revision, error)
	Node(ctx context.Context, path string) (Node, error)
}

// Provider resolves repository names to repositories.
type Provider interface {
	Repository(name string) (Repository, error)
}

// Syncer is implemented by repositories that mirror a remote and can be
// brought up to date before a reindex pass.
type Syncer interface {
	Sync(ctx context.Context) error
}

// ChangeLister is implemented by repositories that can report the paths changed
// between two revisions. Deleted paths are not reported.
type ChangeLister interface {
	ChangedPaths(ctx context.Context, from, to domain.Revision) ([]string, error)
}
