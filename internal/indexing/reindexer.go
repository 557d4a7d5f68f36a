package indexing

import (
	"context"
	"log/slog"
	"time"

	"github.com/sha1n/relic-search/internal/backend"
	"github.com/sha1n/relic-search/internal/domain"
	"github.com/sha1n/relic-search/internal/extract"
	"github.com/sha1n/relic-search/internal/repository"
)

// PassResult summarizes one reindex pass.
type PassResult struct {
	Repository string
	Revision   domain.Revision
	// Targeted is true when an explicit path list was processed.
	Targeted bool
	// UpToDate is true when the pass was skipped because the index already
	// reflects the youngest revision.
	UpToDate     bool
	Added        int
	NotIndexable int
	Committed    bool
	StartedAt    time.Time
	Duration     time.Duration
}

// ReindexerOptions configures a Reindexer.
type ReindexerOptions struct {
	BatchSize  int
	BatchBytes int
	Logger     *slog.Logger
	// Now stamps documents and passes; nil means time.Now.
	Now func() time.Time
}

// Reindexer runs reindex passes: a full walk from the root, or a targeted
// pass over an explicit set of changed paths.
type Reindexer struct {
	backend   backend.Backend
	extractor *extract.Extractor
	checker   *StalenessChecker
	opts      ReindexerOptions
	logger    *slog.Logger
}

// NewReindexer creates a reindexer writing to b.
func NewReindexer(b backend.Backend, extractor *extract.Extractor, opts ReindexerOptions) *Reindexer {
	if extractor == nil {
		extractor = extract.NewExtractor(nil, 0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reindexer{
		backend:   b,
		extractor: extractor,
		checker:   NewStalenessChecker(b),
		opts:      opts,
		logger:    logger,
	}
}

// Reindex runs one pass over repo. With no modified paths the whole tree is
// walked, unless the backend already holds the youngest revision. With
// modified paths exactly those nodes are processed, whatever the staleness.
// Every record is stamped with the revision read once when the pass starts.
// Any failure aborts the pass without a commit.
func (r *Reindexer) Reindex(ctx context.Context, repo repository.Repository, modified []string) (result PassResult, err error) {
	result = PassResult{
		Repository: repo.Name(),
		Targeted:   len(modified) > 0,
		StartedAt:  r.opts.Now(),
	}
	defer func() { result.Duration = r.opts.Now().Sub(result.StartedAt) }()
	logger := r.logger.With("repo", repo.Name())

	revision, err := repo.YoungestRevision(ctx)
	if err != nil {
		return result, &domain.RepositoryAccessError{Repository: repo.Name(), Op: "youngest revision", Err: err}
	}
	result.Revision = revision

	var nodes NodeIterator
	if result.Targeted {
		nodes = newPathIterator(repo, modified)
	} else {
		staleness, err := r.checker.CheckStale(ctx, repo.Name())
		if err != nil {
			return result, err
		}
		if staleness.UpToDate(revision) {
			logger.Debug("Repository does not need reindexing", "revision", revision)
			result.UpToDate = true
			return result, nil
		}
		logger.Debug("Repository needs reindexing", "revision", revision, "last_indexed", staleness.LastIndexed, "indexed", staleness.Indexed)
		nodes = NewWalker(repo, repository.RootPath)
	}

	writer := NewWriter(r.backend, r.opts.BatchSize, r.opts.BatchBytes, r.opts.Now)
	for nodes.Next(ctx) {
		node := nodes.Node()

		text, ok, err := r.extractor.ExtractNode(ctx, node)
		if err != nil {
			return result, &domain.RepositoryAccessError{Repository: repo.Name(), Path: node.Path(), Op: "read content", Err: err}
		}
		if !ok {
			result.NotIndexable++
			continue
		}

		err = writer.Add(ctx, domain.IndexRecord{
			Repository: repo.Name(),
			Path:       node.Path(),
			Content:    text,
			Revision:   revision,
		})
		if err != nil {
			result.Added = writer.Added()
			return result, err
		}
		logger.Debug("Queued file for indexing", "path", node.Path())
	}
	if err := nodes.Err(); err != nil {
		result.Added = writer.Added()
		return result, err
	}

	if err := writer.Commit(ctx); err != nil {
		result.Added = writer.Added()
		return result, err
	}
	result.Added = writer.Added()
	result.Committed = true

	logger.Info("Reindexed repository",
		"revision", revision,
		"added", result.Added,
		"skipped", result.NotIndexable,
		"targeted", result.Targeted)
	return result, nil
}
