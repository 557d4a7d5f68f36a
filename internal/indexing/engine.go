// Package indexing implements incremental reindexing of repositories into a
// search backend and the mapping of search hits back to files.
package indexing

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sha1n/relic-search/internal/backend"
	"github.com/sha1n/relic-search/internal/domain"
	"github.com/sha1n/relic-search/internal/extract"
	"github.com/sha1n/relic-search/internal/repository"
)

// DefaultMaxParallel bounds concurrent passes in ReindexAll.
const DefaultMaxParallel = 4

// Observer is notified after every reindex pass, failed or not.
type Observer interface {
	PassFinished(result PassResult, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(result PassResult, err error)

// PassFinished implements Observer.
func (f ObserverFunc) PassFinished(result PassResult, err error) {
	f(result, err)
}

// Options configures an Engine.
type Options struct {
	BatchSize   int
	BatchBytes  int
	PageSize    int
	MaxParallel int
	// SyncBeforeFullPass updates repositories implementing repository.Syncer
	// before a full pass.
	SyncBeforeFullPass bool
	Logger             *slog.Logger
	Observers          []Observer
}

// Engine exposes ReindexRepository and FindWords over a set of repositories
// and a single backend. It is safe for concurrent use; passes for the same
// repository are not coordinated.
type Engine struct {
	repos     repository.Provider
	reindexer *Reindexer
	mapper    *Mapper
	opts      Options
	logger    *slog.Logger

	mu        sync.RWMutex
	observers []Observer
}

// NewEngine creates an engine.
func NewEngine(repos repository.Provider, b backend.Backend, extractor *extract.Extractor, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultMaxParallel
	}
	return &Engine{
		repos: repos,
		reindexer: NewReindexer(b, extractor, ReindexerOptions{
			BatchSize:  opts.BatchSize,
			BatchBytes: opts.BatchBytes,
			Logger:     logger,
		}),
		mapper:    NewMapper(b, opts.PageSize),
		opts:      opts,
		logger:    logger,
		observers: append([]Observer(nil), opts.Observers...),
	}
}

// AddObserver registers an observer for subsequent passes.
func (e *Engine) AddObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// ReindexRepository reindexes the named repository. A nil or empty modified
// list requests a full pass, skipped when the repository is up to date.
func (e *Engine) ReindexRepository(ctx context.Context, name string, modified []string) (PassResult, error) {
	result, err := e.reindex(ctx, name, modified)
	e.notify(result, err)
	if err != nil {
		e.logger.Error("Reindex failed", "repo", name, "error", err)
	}
	return result, err
}

func (e *Engine) reindex(ctx context.Context, name string, modified []string) (PassResult, error) {
	result := PassResult{Repository: name, Targeted: len(modified) > 0}

	repo, err := e.repos.Repository(name)
	if err != nil {
		return result, &domain.RepositoryAccessError{Repository: name, Op: "resolve", Err: err}
	}

	if e.opts.SyncBeforeFullPass && len(modified) == 0 {
		if syncer, ok := repo.(repository.Syncer); ok {
			if err := syncer.Sync(ctx); err != nil {
				return result, &domain.RepositoryAccessError{Repository: name, Op: "sync", Err: err}
			}
		}
	}

	return e.reindexer.Reindex(ctx, repo, modified)
}

// ReindexAll runs a full pass for each named repository, at most
// MaxParallel at a time. Passes are independent; all failures are joined.
func (e *Engine) ReindexAll(ctx context.Context, names []string) error {
	var (
		mu   sync.Mutex
		errs []error
	)

	var g errgroup.Group
	g.SetLimit(e.opts.MaxParallel)
	for _, name := range names {
		g.Go(func() error {
			if _, err := e.ReindexRepository(ctx, name, nil); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// FindWords returns a lazy iterator over the (filename, repository) pairs matching query.
func (e *Engine) FindWords(ctx context.Context, query string) *MatchIterator {
	return e.mapper.Find(ctx, query)
}

func (e *Engine) notify(result PassResult, err error) {
	e.mu.RLock()
	observers := e.observers
	e.mu.RUnlock()

	for _, o := range observers {
		o.PassFinished(result, err)
	}
}
