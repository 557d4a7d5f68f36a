package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/sha1n/relic-search/internal/domain"
	"github.com/sha1n/relic-search/internal/indexing"
	"github.com/sha1n/relic-search/internal/journal"
	mcputil "github.com/sha1n/relic-search/internal/mcp"
	"github.com/sha1n/relic-search/internal/metrics"
	"github.com/sha1n/relic-search/internal/repository"
	"github.com/spf13/pflag"
)

// DefaultSearchLimit is the number of matches printed by the search command.
const DefaultSearchLimit = 50

// reindexLockTimeout bounds how long the reindex command waits for a bulk run
// held by another process.
const reindexLockTimeout = 30 * time.Minute

// RunReindex reindexes the named repositories, or all of them when names is
// empty. A non-empty paths list requests a targeted pass and needs exactly one
// repository.
func RunReindex(ctx context.Context, params RunParams, flags *pflag.FlagSet, names, paths []string) error {
	if len(paths) > 0 && len(names) != 1 {
		return fmt.Errorf("--path requires exactly one repository")
	}

	_, comps, err := params.setup(flags)
	if err != nil {
		return err
	}
	defer func() { _ = comps.Close() }()

	all := len(names) == 0
	if all {
		names = comps.Repos.Names()
	}
	if len(names) == 0 {
		return fmt.Errorf("no repositories configured")
	}

	out := params.out()
	if len(paths) > 0 {
		result, err := comps.Engine.ReindexRepository(ctx, names[0], paths)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, mcputil.FormatPassResult(result))
		return nil
	}

	var mu sync.Mutex
	comps.Engine.AddObserver(indexing.ObserverFunc(func(result indexing.PassResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			_, _ = fmt.Fprintf(out, "Reindex of %s failed: %s\n", result.Repository, err)
			return
		}
		_, _ = fmt.Fprintln(out, mcputil.FormatPassResult(result))
	}))

	// Waits for a bulk run held elsewhere instead of skipping it.
	if err := comps.Lock.LockWithContext(ctx, reindexLockTimeout); err != nil {
		return fmt.Errorf("failed to acquire reindex lock: %w", err)
	}
	defer func() { _ = comps.Lock.Unlock() }()

	started := time.Now()
	err = comps.ReindexAll(ctx, names)
	if all {
		comps.Journal.MarkRun(started)
	}
	return err
}

// RunSearch prints up to limit matches for query, one "repo:path" per line.
func RunSearch(ctx context.Context, params RunParams, flags *pflag.FlagSet, query string, limit int) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	_, comps, err := params.setup(flags)
	if err != nil {
		return err
	}
	defer func() { _ = comps.Close() }()

	it := comps.Engine.FindWords(ctx, query)
	defer it.Close()

	out := params.out()
	printed := 0
	for printed < limit && it.Next() {
		m := it.Match()
		_, _ = fmt.Fprintf(out, "%s:%s\n", m.Repository, m.Filename)
		printed++
	}
	if err := it.Err(); err != nil {
		metrics.ObserveSearch("cli", printed, err)
		return fmt.Errorf("search failed: %w", err)
	}
	metrics.ObserveSearch("cli", printed, nil)

	if printed == 0 {
		_, _ = fmt.Fprintf(out, "No files found for query: %s\n", query)
	} else if total := it.Total(); total > uint64(printed) {
		_, _ = fmt.Fprintf(out, "... and %d more files\n", total-uint64(printed))
	}
	return nil
}

// RunHook reindexes the files changed between two revisions of a repository.
// It is meant to be called from a post-commit or post-receive hook. Pushes
// that do not move the indexed revision are skipped, an empty change set does
// nothing and an all-zero old revision (a new branch) triggers a full pass.
func RunHook(ctx context.Context, params RunParams, flags *pflag.FlagSet, name, oldRev, newRev string) error {
	_, comps, err := params.setup(flags)
	if err != nil {
		return err
	}
	defer func() { _ = comps.Close() }()

	repo, err := comps.Repos.Repository(name)
	if err != nil {
		return err
	}

	// Targeted passes read nodes at the indexed revision, so a diff of any
	// other ref would pair its paths with the wrong content.
	indexed, err := repo.YoungestRevision(ctx)
	if err != nil {
		return &domain.RepositoryAccessError{Repository: name, Op: "youngest revision", Err: err}
	}
	out := params.out()
	if indexed != domain.Revision(newRev) {
		_, _ = fmt.Fprintf(out, "Skipping %s: pushed revision %s is not the indexed revision %s\n", name, newRev, indexed)
		return nil
	}

	var paths []string
	if !isZeroRevision(oldRev) {
		lister, ok := repo.(repository.ChangeLister)
		if !ok {
			return fmt.Errorf("repository %s cannot list changed paths", name)
		}

		paths, err = lister.ChangedPaths(ctx, domain.Revision(oldRev), domain.Revision(newRev))
		if err != nil {
			return &domain.RepositoryAccessError{Repository: name, Op: "diff", Err: err}
		}
		if len(paths) == 0 {
			_, _ = fmt.Fprintf(out, "No changes in %s between %s and %s\n", name, oldRev, newRev)
			return nil
		}
	}

	result, err := comps.Engine.ReindexRepository(ctx, name, paths)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, mcputil.FormatPassResult(result))
	return nil
}

func isZeroRevision(rev string) bool {
	return rev != "" && strings.Trim(rev, "0") == ""
}

// RunStatus prints the last recorded pass of every repository. It reads the
// journal only and never contacts the backend.
func RunStatus(_ context.Context, params RunParams, flags *pflag.FlagSet) error {
	settings, err := params.loadSettings(flags)
	if err != nil {
		return err
	}

	j, err := journal.Load(filepath.Join(settings.Repos.BaseDir, journal.Filename), nil)
	if err != nil {
		return err
	}

	out := params.out()
	if last := j.LastRunAt(); last.IsZero() {
		_, _ = fmt.Fprintln(out, "Last bulk reindex: never")
	} else {
		_, _ = fmt.Fprintf(out, "Last bulk reindex: %s\n", last.Local().Format(time.RFC3339))
	}

	names := j.Names()
	if len(names) == 0 {
		_, _ = fmt.Fprintln(out, "No passes recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "REPOSITORY\tREVISION\tLAST PASS\tADDED\tSKIPPED\tSTATUS")
	for _, name := range names {
		rec, _ := j.Get(name)
		status := "ok"
		switch {
		case rec.Error != "":
			status = "error: " + rec.Error
		case rec.UpToDate:
			status = "up to date"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			name, orDash(rec.Revision), rec.StartedAt.Local().Format(time.RFC3339), rec.Added, rec.NotIndexable, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if failing := j.ReposWithErrors(); len(failing) > 0 {
		failed := make([]string, 0, len(failing))
		for name := range failing {
			failed = append(failed, name)
		}
		sort.Strings(failed)
		_, _ = fmt.Fprintf(out, "%d of %d repositories failed their last pass: %s\n", len(failed), len(names), strings.Join(failed, ", "))
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
