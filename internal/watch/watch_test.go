package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sha1n/relic-search/internal/journal"
)

type runRecorder struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (r *runRecorder) reindexAll(_ context.Context, names []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string(nil), names...))
	return r.err
}

func (r *runRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type fakeLock struct {
	acquire  bool
	err      error
	locked   int
	unlocked int
}

func (l *fakeLock) TryLock() (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.acquire {
		l.locked++
	}
	return l.acquire, nil
}

func (l *fakeLock) Unlock() error {
	l.unlocked++
	return nil
}

func TestScheduler_RunOnce(t *testing.T) {
	rec := &runRecorder{}
	lock := &fakeLock{acquire: true}
	s := NewScheduler(rec.reindexAll, []string{"a", "b"}, Options{Lock: lock})

	ran, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, [][]string{{"a", "b"}}, rec.calls)
	assert.Equal(t, 1, lock.locked)
	assert.Equal(t, 1, lock.unlocked)
}

func TestScheduler_RunOnce_LockHeldElsewhere(t *testing.T) {
	rec := &runRecorder{}
	lock := &fakeLock{acquire: false}
	s := NewScheduler(rec.reindexAll, []string{"a"}, Options{Lock: lock})

	ran, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Zero(t, rec.count())
	assert.Zero(t, lock.unlocked)
}

func TestScheduler_RunOnce_LockError(t *testing.T) {
	rec := &runRecorder{}
	s := NewScheduler(rec.reindexAll, []string{"a"}, Options{Lock: &fakeLock{err: errors.New("permission denied")}})

	ran, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.False(t, ran)
	assert.Zero(t, rec.count())
}

func TestScheduler_RunOnce_PassFailuresAreNotReturned(t *testing.T) {
	rec := &runRecorder{err: errors.New("one repository failed")}
	s := NewScheduler(rec.reindexAll, []string{"a"}, Options{})

	ran, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestScheduler_RunOnce_TracksRuns(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j := journal.New("", nil)
	j.Repos["gone"] = journal.PassRecord{Revision: "1"}

	rec := &runRecorder{}
	s := NewScheduler(rec.reindexAll, []string{"a"}, Options{
		Tracker: j,
		Now:     func() time.Time { return now },
	})

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now, j.LastRun)
	_, ok := j.Get("gone")
	assert.False(t, ok, "unconfigured repositories are forgotten")
}

func TestScheduler_Run_SkipsRecentStartupRun(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j := journal.New("", nil)
	j.MarkRun(now.Add(-time.Minute))

	rec := &runRecorder{}
	s := NewScheduler(rec.reindexAll, []string{"a"}, Options{
		Interval: time.Hour,
		Tracker:  j,
		Now:      func() time.Time { return now },
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))
	assert.Zero(t, rec.count())
}

func TestScheduler_Run_ZeroIntervalRunsOnce(t *testing.T) {
	rec := &runRecorder{}
	s := NewScheduler(rec.reindexAll, []string{"a"}, Options{})

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 1, rec.count())
}

func TestScheduler_Run_Periodic(t *testing.T) {
	rec := &runRecorder{}
	s := NewScheduler(rec.reindexAll, []string{"a"}, Options{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return rec.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestScheduler_WithFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), journal.LockFilename)
	held := journal.NewFileLock(path)
	acquired, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)

	rec := &runRecorder{}
	s := NewScheduler(rec.reindexAll, []string{"a"}, Options{Lock: journal.NewFileLock(path)})

	ran, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran, "another holder owns the lock")

	require.NoError(t, held.Unlock())
	ran, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestDebouncer_Coalesces(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add("b")
	d.Add("a")
	d.Add("b")

	select {
	case names := <-d.Output():
		assert.Equal(t, []string{"a", "b"}, names)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a batch")
	}

	select {
	case names := <-d.Output():
		t.Fatalf("unexpected second batch %v", names)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestDebouncer_StopIsIdempotent(t *testing.T) {
	d := NewDebouncer(time.Millisecond)
	d.Stop()
	d.Stop()
	d.Add("a")

	_, ok := <-d.Output()
	assert.False(t, ok)
}

func makeGitDir(t *testing.T, bare bool) (repoDir, gitDir string) {
	t.Helper()
	repoDir = t.TempDir()
	gitDir = repoDir
	if !bare {
		gitDir = filepath.Join(repoDir, ".git")
	}
	require.NoError(t, os.MkdirAll(filepath.Join(gitDir, "refs", "heads"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/main\n"), 0644))
	return repoDir, gitDir
}

func TestGitDir(t *testing.T) {
	work, workGit := makeGitDir(t, false)
	assert.Equal(t, workGit, GitDir(work))

	bare, _ := makeGitDir(t, true)
	assert.Equal(t, bare, GitDir(bare))
}

func TestRefWatcher_SkipsMissingRepositories(t *testing.T) {
	work, workGit := makeGitDir(t, false)
	w, err := NewRefWatcher(map[string]string{
		"app":     work,
		"missing": filepath.Join(t.TempDir(), "nope"),
	}, 10*time.Millisecond, nil)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	assert.ElementsMatch(t, []string{workGit, filepath.Join(workGit, "refs", "heads")}, w.Watched())
}

func TestRefWatcher_TriggersOnRefChange(t *testing.T) {
	work, workGit := makeGitDir(t, false)
	w, err := NewRefWatcher(map[string]string{"app": work}, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	changed := make(chan string, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = w.Run(ctx, func(_ context.Context, name string) { changed <- name })
	}()

	// Lock files and unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(workGit, "refs", "heads", "main.lock"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(workGit, "config"), []byte("x"), 0644))
	select {
	case name := <-changed:
		t.Fatalf("unexpected trigger for %s", name)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(filepath.Join(workGit, "refs", "heads", "main"), []byte("abc\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(workGit, "HEAD"), []byte("ref: refs/heads/main\n"), 0644))

	select {
	case name := <-changed:
		assert.Equal(t, "app", name)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a trigger after the ref moved")
	}

	select {
	case name := <-changed:
		t.Fatalf("changes within the window should coalesce, got second trigger for %s", name)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRefWatcher_WatchesNestedBranchNamespaces(t *testing.T) {
	work, workGit := makeGitDir(t, false)
	heads := filepath.Join(workGit, "refs", "heads")
	require.NoError(t, os.MkdirAll(filepath.Join(heads, "feature", "ui"), 0755))

	w, err := NewRefWatcher(map[string]string{"app": work}, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	assert.ElementsMatch(t, []string{
		workGit,
		heads,
		filepath.Join(heads, "feature"),
		filepath.Join(heads, "feature", "ui"),
	}, w.Watched())

	changed := make(chan string, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = w.Run(ctx, func(_ context.Context, name string) { changed <- name })
	}()

	require.NoError(t, os.WriteFile(filepath.Join(heads, "feature", "ui", "login"), []byte("abc\n"), 0644))
	select {
	case name := <-changed:
		assert.Equal(t, "app", name)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a trigger for a nested branch")
	}

	// A namespace created after startup is picked up as it appears.
	team := filepath.Join(heads, "team")
	require.NoError(t, os.Mkdir(team, 0755))
	require.Eventually(t, func() bool {
		for _, d := range w.Watched() {
			if d == team {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a trigger for the new namespace")
	}

	require.NoError(t, os.WriteFile(filepath.Join(team, "fix"), []byte("def\n"), 0644))
	select {
	case name := <-changed:
		assert.Equal(t, "app", name)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a trigger for a branch in the new namespace")
	}
}
