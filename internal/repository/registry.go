package repository

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sha1n/relic-search/internal/domain"
)

// Spec describes a configured repository: "name=location" or a bare location.
type Spec struct {
	Name     string
	Location string
}

// ParseSpec parses a repository entry of the form "name=location" or "location".
// Names for bare locations are derived from the remote URL or directory name.
func ParseSpec(entry string) (Spec, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return Spec{}, fmt.Errorf("empty repository entry")
	}

	name, location, found := strings.Cut(entry, "=")
	if !found {
		location = entry
		name = ""
	}
	name = strings.TrimSpace(name)
	location = strings.TrimSpace(location)

	if location == "" {
		return Spec{}, fmt.Errorf("repository entry %q has no location", entry)
	}

	if name == "" {
		if IsRemoteURL(location) {
			name = RemoteName(location)
		} else {
			name = LocalName(location)
		}
	}

	return Spec{Name: name, Location: location}, nil
}

// Registry is a Provider over a fixed set of repositories.
type Registry struct {
	mu    sync.RWMutex
	repos map[string]Repository
	order []string
}

// NewRegistry creates a registry holding the given repositories.
func NewRegistry(repos ...Repository) *Registry {
	r := &Registry{repos: make(map[string]Repository)}
	for _, repo := range repos {
		r.Add(repo)
	}
	return r
}

// NewGitRegistry builds git repositories from specs. Remote locations are
// mirrored under baseDir.
func NewGitRegistry(specs []Spec, baseDir string, opts ...GitOption) (*Registry, error) {
	r := NewRegistry()
	for _, spec := range specs {
		if _, exists := r.repos[spec.Name]; exists {
			return nil, fmt.Errorf("duplicate repository name: %s", spec.Name)
		}

		repoOpts := append([]GitOption(nil), opts...)
		dir := spec.Location
		if IsRemoteURL(spec.Location) {
			dir = filepath.Join(baseDir, "repos", MirrorDirName(spec.Name))
			repoOpts = append(repoOpts, WithRemote(spec.Location))
		}
		r.Add(NewGitRepository(spec.Name, dir, repoOpts...))
	}
	return r, nil
}

// Add registers a repository, replacing any previous one with the same name.
func (r *Registry) Add(repo Repository) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.repos[repo.Name()]; !exists {
		r.order = append(r.order, repo.Name())
	}
	r.repos[repo.Name()] = repo
}

// Repository returns the repository registered under name.
func (r *Registry) Repository(name string) (Repository, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	repo, ok := r.repos[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrRepositoryNotFound)
	}
	return repo, nil
}

// Names returns registered repository names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
