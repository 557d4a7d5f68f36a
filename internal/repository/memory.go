package repository

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/sha1n/relic-search/internal/domain"
)

// MemoryRepository is an in-memory Repository. Directory entries are reported
// in insertion order. It is used by tests and by hosts embedding fixed trees.
type MemoryRepository struct {
	mu       sync.Mutex
	name     string
	revision domain.Revision
	nodes    map[string]*memoryNode
	failures map[string]error
	lookups  []string
}

type memoryNode struct {
	path     string
	kind     Kind
	kindName string
	content  []byte
	hasData  bool
	children []string
}

// NewMemoryRepository creates an empty repository at the given revision.
func NewMemoryRepository(name string, revision domain.Revision) *MemoryRepository {
	return &MemoryRepository{
		name:     name,
		revision: revision,
		nodes: map[string]*memoryNode{
			RootPath: {path: RootPath, kind: KindDirectory},
		},
		failures: make(map[string]error),
	}
}

// AddFile adds a file, creating parent directories as needed. An empty
// contentKind is derived from the file name.
func (r *MemoryRepository) AddFile(p string, content []byte, contentKind string) *MemoryRepository {
	if contentKind == "" {
		contentKind = ContentKindForPath(p)
	}
	r.add(&memoryNode{kind: KindFile, kindName: contentKind, content: content, hasData: true}, p)
	return r
}

// AddSymlink adds a file node without retrievable content.
func (r *MemoryRepository) AddSymlink(p string) *MemoryRepository {
	r.add(&memoryNode{kind: KindFile, kindName: DefaultContentKind}, p)
	return r
}

// AddDir adds an empty directory.
func (r *MemoryRepository) AddDir(p string) *MemoryRepository {
	r.add(&memoryNode{kind: KindDirectory}, p)
	return r
}

// SetRevision moves the repository to a new youngest revision.
func (r *MemoryRepository) SetRevision(revision domain.Revision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revision = revision
}

// FailOn makes any access to the node at p fail with err.
func (r *MemoryRepository) FailOn(p string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[NormalizePath(p)] = err
}

// Lookups returns the paths passed to Node, in call order.
func (r *MemoryRepository) Lookups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lookups...)
}

func (r *MemoryRepository) add(n *memoryNode, p string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n.path = NormalizePath(p)
	if existing, exists := r.nodes[n.path]; exists {
		n.children = existing.children
	} else {
		r.link(n.path)
	}
	r.nodes[n.path] = n
}

// link registers p with its parent, creating missing ancestors.
func (r *MemoryRepository) link(p string) {
	if p == RootPath {
		return
	}
	parent := path.Dir(p)
	dir, ok := r.nodes[parent]
	if !ok {
		dir = &memoryNode{path: parent, kind: KindDirectory}
		r.nodes[parent] = dir
		r.link(parent)
	}
	dir.children = append(dir.children, p)
}

// Name returns the repository name.
func (r *MemoryRepository) Name() string {
	return r.name
}

// YoungestRevision returns the current revision.
func (r *MemoryRepository) YoungestRevision(context.Context) (domain.Revision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revision, nil
}

// Node returns the node at p.
func (r *MemoryRepository) Node(_ context.Context, p string) (Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p = NormalizePath(p)
	r.lookups = append(r.lookups, p)
	if err := r.failures[p]; err != nil {
		return nil, err
	}

	n, ok := r.nodes[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrNodeNotFound)
	}
	return &memoryView{repo: r, node: n}, nil
}

// memoryView is the Node handed out for a memoryNode.
type memoryView struct {
	repo *MemoryRepository
	node *memoryNode
}

func (v *memoryView) Path() string {
	return v.node.path
}

func (v *memoryView) Kind() Kind {
	return v.node.kind
}

func (v *memoryView) Entries(context.Context) ([]string, error) {
	if v.node.kind != KindDirectory {
		return nil, fmt.Errorf("%s is not a directory", v.node.path)
	}
	v.repo.mu.Lock()
	defer v.repo.mu.Unlock()
	return append([]string(nil), v.node.children...), nil
}

func (v *memoryView) ReadContent(context.Context) ([]byte, bool, error) {
	if v.node.kind == KindDirectory || !v.node.hasData {
		return nil, false, nil
	}
	return v.node.content, true, nil
}

func (v *memoryView) ContentKind() string {
	return v.node.kindName
}
