// Package journal records the outcome of reindex passes for status reporting
// and provides the cross-process lock that elects a single bulk reindexer.
// The journal is informational: staleness is always decided by the backend.
package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sha1n/relic-search/internal/indexing"
)

const (
	// Version is the current schema version
	Version = 1

	// Filename is the default journal filename
	Filename = "journal.json"
)

// Journal stores the last pass outcome for every repository.
type Journal struct {
	Version int                   `json:"version"`
	LastRun time.Time             `json:"last_run"`
	Repos   map[string]PassRecord `json:"repos"`

	mu     sync.RWMutex
	saveMu sync.Mutex
	path   string
	logger *slog.Logger
}

// PassRecord is the outcome of the most recent pass over one repository.
type PassRecord struct {
	Revision     string        `json:"revision,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Targeted     bool          `json:"targeted,omitempty"`
	UpToDate     bool          `json:"up_to_date,omitempty"`
	Added        int           `json:"added"`
	NotIndexable int           `json:"not_indexable"`
	Error        string        `json:"error,omitempty"`
}

// New creates an empty journal persisted at path. An empty path keeps the
// journal in memory only.
func New(path string, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		Version: Version,
		Repos:   make(map[string]PassRecord),
		path:    path,
		logger:  logger,
	}
}

// Load reads the journal at path, or creates a new one if it doesn't exist.
func Load(path string, logger *slog.Logger) (*Journal, error) {
	j := New(path, logger)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return j, nil
		}
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	if err := json.Unmarshal(data, j); err != nil {
		return nil, fmt.Errorf("failed to parse journal: %w", err)
	}
	if j.Repos == nil {
		j.Repos = make(map[string]PassRecord)
	}
	return j, nil
}

// Path returns the file backing the journal.
func (j *Journal) Path() string {
	return j.path
}

// Save writes the journal to disk atomically.
// Uses write-to-temp + rename pattern to prevent corruption.
func (j *Journal) Save() error {
	if j.path == "" {
		return nil
	}

	j.saveMu.Lock()
	defer j.saveMu.Unlock()

	j.mu.RLock()
	data, err := json.MarshalIndent(j, "", "  ")
	j.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal journal: %w", err)
	}

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	tempPath := j.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write journal temp file: %w", err)
	}

	if err := os.Rename(tempPath, j.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename journal file: %w", err)
	}

	return nil
}

// Record stores the outcome of a pass. A failed pass keeps the previous
// revision, since nothing new was committed.
func (j *Journal) Record(result indexing.PassResult, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	previous := j.Repos[result.Repository]
	rec := PassRecord{
		Revision:     string(result.Revision),
		StartedAt:    result.StartedAt,
		Duration:     result.Duration,
		Targeted:     result.Targeted,
		UpToDate:     result.UpToDate,
		Added:        result.Added,
		NotIndexable: result.NotIndexable,
	}
	if err != nil {
		rec.Error = err.Error()
		rec.Revision = previous.Revision
	}
	j.Repos[result.Repository] = rec
}

// PassFinished implements indexing.Observer by recording and saving.
func (j *Journal) PassFinished(result indexing.PassResult, err error) {
	j.Record(result, err)
	if saveErr := j.Save(); saveErr != nil {
		j.logger.Warn("Failed to save journal", "path", j.path, "error", saveErr)
	}
}

// Get returns the record for a repository.
func (j *Journal) Get(repo string) (PassRecord, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	rec, ok := j.Repos[repo]
	return rec, ok
}

// Names returns the repositories in the journal, sorted.
func (j *Journal) Names() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	names := make([]string, 0, len(j.Repos))
	for name := range j.Repos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of all records.
func (j *Journal) Snapshot() map[string]PassRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make(map[string]PassRecord, len(j.Repos))
	for name, rec := range j.Repos {
		out[name] = rec
	}
	return out
}

// ReposWithErrors returns the repositories whose last pass failed.
func (j *Journal) ReposWithErrors() map[string]string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	result := make(map[string]string)
	for name, rec := range j.Repos {
		if rec.Error != "" {
			result[name] = rec.Error
		}
	}
	return result
}

// RemoveStale drops repositories not in names. Returns the removed names.
func (j *Journal) RemoveStale(names []string) []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	expected := make(map[string]bool, len(names))
	for _, name := range names {
		expected[name] = true
	}

	var removed []string
	for name := range j.Repos {
		if !expected[name] {
			removed = append(removed, name)
		}
	}
	for _, name := range removed {
		delete(j.Repos, name)
	}
	sort.Strings(removed)
	return removed
}

// MarkRun records that a bulk reindex started now.
func (j *Journal) MarkRun(now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.LastRun = now
}

// LastRunAt returns when the last bulk reindex started. Zero if never.
func (j *Journal) LastRunAt() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.LastRun
}

// NeedsRun returns true if at least interval has passed since the last bulk reindex.
func (j *Journal) NeedsRun(now time.Time, interval time.Duration) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.LastRun.IsZero() {
		return true
	}
	return now.Sub(j.LastRun) >= interval
}
