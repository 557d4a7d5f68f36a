package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sha1n/relic-search/internal/backend"
	"github.com/sha1n/relic-search/internal/config"
	"github.com/sha1n/relic-search/internal/extract"
	"github.com/sha1n/relic-search/internal/indexing"
	"github.com/sha1n/relic-search/internal/journal"
	"github.com/sha1n/relic-search/internal/metrics"
	"github.com/sha1n/relic-search/internal/repository"
)

// Components are the long-lived collaborators shared by every command.
type Components struct {
	Backend backend.Backend
	Repos   *repository.Registry
	Engine  *indexing.Engine
	Journal *journal.Journal
	// Lock guards bulk reindex runs across processes sharing the base dir.
	Lock   *journal.FileLock
	Logger *slog.Logger
}

// BuildComponents wires the backend, repositories, engine and journal from settings.
func BuildComponents(settings *config.Settings, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}

	specs := make([]repository.Spec, 0, len(settings.Repos.List))
	for _, entry := range settings.Repos.List {
		spec, err := repository.ParseSpec(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid repository entry: %w", err)
		}
		specs = append(specs, spec)
	}
	repos, err := repository.NewGitRegistry(specs, settings.Repos.BaseDir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(settings.Repos.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	b, err := backend.Open(settings.Backend.URL, backend.Options{Timeout: settings.Backend.TimeoutDuration()})
	if err != nil {
		return nil, fmt.Errorf("failed to open backend: %w", err)
	}

	return NewComponents(settings, repos, b, logger), nil
}

// NewComponents wires an engine over an existing registry and backend, with the
// journal and lock kept under the configured base directory.
func NewComponents(settings *config.Settings, repos *repository.Registry, b backend.Backend, logger *slog.Logger) *Components {
	if logger == nil {
		logger = slog.Default()
	}

	j := loadJournal(filepath.Join(settings.Repos.BaseDir, journal.Filename), logger)
	engine := indexing.NewEngine(repos, b, extract.NewExtractor(nil, settings.Repos.MaxFileSize), indexing.Options{
		BatchSize:          settings.Backend.BatchSize,
		BatchBytes:         settings.Backend.BatchBytes,
		PageSize:           settings.Search.PageSize,
		MaxParallel:        settings.Repos.MaxParallel,
		SyncBeforeFullPass: true,
		Logger:             logger,
		Observers:          []indexing.Observer{j, metrics.NewPassObserver()},
	})

	return &Components{
		Backend: b,
		Repos:   repos,
		Engine:  engine,
		Journal: j,
		Lock:    journal.NewFileLock(filepath.Join(settings.Repos.BaseDir, journal.LockFilename)),
		Logger:  logger,
	}
}

// loadJournal loads the pass journal, starting afresh when it is unreadable.
// The journal is informational, so a corrupt file never blocks indexing.
func loadJournal(path string, logger *slog.Logger) *journal.Journal {
	j, err := journal.Load(path, logger)
	if err != nil {
		logger.Warn("Failed to load journal, starting fresh", "path", path, "error", err)
		return journal.New(path, logger)
	}
	return j
}

// ReindexAll runs a bulk reindex over names and tracks it as running.
func (c *Components) ReindexAll(ctx context.Context, names []string) error {
	metrics.ReindexRunning.Inc()
	defer metrics.ReindexRunning.Dec()
	return c.Engine.ReindexAll(ctx, names)
}

// LocalRepositoryDirs returns the working directories of repositories that are
// not mirrors of a remote, keyed by name.
func (c *Components) LocalRepositoryDirs() map[string]string {
	dirs := make(map[string]string)
	for _, name := range c.Repos.Names() {
		repo, err := c.Repos.Repository(name)
		if err != nil {
			continue
		}
		local, ok := repo.(interface {
			Dir() string
			Remote() string
		})
		if ok && local.Remote() == "" {
			dirs[name] = local.Dir()
		}
	}
	return dirs
}

// Close saves the journal and closes the backend.
func (c *Components) Close() error {
	var errs []error
	if err := c.Journal.Save(); err != nil {
		errs = append(errs, fmt.Errorf("failed to save journal: %w", err))
	}
	if err := c.Backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close backend: %w", err))
	}
	return errors.Join(errs...)
}
