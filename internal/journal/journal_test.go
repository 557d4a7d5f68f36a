package journal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/sha1n/relic-search/internal/indexing"
)

var started = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func TestNew(t *testing.T) {
	j := New("", nil)

	if j.Version != Version {
		t.Errorf("Version = %d, want %d", j.Version, Version)
	}
	if len(j.Repos) != 0 {
		t.Errorf("Repos should be empty, got %d entries", len(j.Repos))
	}
	if err := j.Save(); err != nil {
		t.Errorf("Save on in-memory journal should be a no-op, got %v", err)
	}
}

func TestLoad_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename)

	j, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if j.Path() != path {
		t.Errorf("Path = %q, want %q", j.Path(), path)
	}
	if len(j.Repos) != 0 {
		t.Error("Expected empty repos for new journal")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename)
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path, nil); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestLoad_NilRepos(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename)
	if err := os.WriteFile(path, []byte(`{"version":1}`), 0644); err != nil {
		t.Fatal(err)
	}

	j, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if j.Repos == nil {
		t.Error("Repos should be initialized")
	}
}

func TestJournal_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", Filename)
	j := New(path, nil)

	j.Record(indexing.PassResult{
		Repository:   "docs",
		Revision:     "10",
		Added:        3,
		NotIndexable: 1,
		Committed:    true,
		StartedAt:    started,
		Duration:     2 * time.Second,
	}, nil)
	j.MarkRun(started)

	if err := j.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file should not remain after save")
	}

	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	rec, ok := loaded.Get("docs")
	if !ok {
		t.Fatal("Expected docs record")
	}
	if !rec.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", rec.StartedAt, started)
	}
	rec.StartedAt = time.Time{}
	want := PassRecord{Revision: "10", Duration: 2 * time.Second, Added: 3, NotIndexable: 1}
	if rec != want {
		t.Errorf("record = %+v, want %+v", rec, want)
	}
	if !loaded.LastRun.Equal(started) {
		t.Errorf("LastRun = %v, want %v", loaded.LastRun, started)
	}
}

func TestJournal_FailedPassKeepsRevision(t *testing.T) {
	j := New("", nil)
	j.Record(indexing.PassResult{Repository: "docs", Revision: "10", Added: 2}, nil)
	j.Record(indexing.PassResult{Repository: "docs", Revision: "11", Added: 1}, errors.New("backend add: timeout"))

	rec, _ := j.Get("docs")
	if rec.Revision != "10" {
		t.Errorf("Revision = %q, want previous revision 10", rec.Revision)
	}
	if rec.Error != "backend add: timeout" {
		t.Errorf("Error = %q", rec.Error)
	}

	errs := j.ReposWithErrors()
	if len(errs) != 1 || errs["docs"] == "" {
		t.Errorf("ReposWithErrors = %v", errs)
	}

	j.Record(indexing.PassResult{Repository: "docs", Revision: "11", Added: 1}, nil)
	if len(j.ReposWithErrors()) != 0 {
		t.Error("A successful pass should clear the error")
	}
}

func TestJournal_PassFinishedSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename)
	j := New(path, nil)

	var observer indexing.Observer = j
	observer.PassFinished(indexing.PassResult{Repository: "r1", Revision: "42", UpToDate: true}, nil)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Journal not saved: %v", err)
	}
	var onDisk struct {
		Repos map[string]PassRecord `json:"repos"`
	}
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatal(err)
	}
	if !onDisk.Repos["r1"].UpToDate {
		t.Errorf("Expected up_to_date in saved journal, got %+v", onDisk.Repos["r1"])
	}
}

func TestJournal_NamesAndRemoveStale(t *testing.T) {
	j := New("", nil)
	for _, name := range []string{"c", "a", "b"} {
		j.Record(indexing.PassResult{Repository: name}, nil)
	}

	if got := j.Names(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("Names = %v", got)
	}

	removed := j.RemoveStale([]string{"b"})
	if !slices.Equal(removed, []string{"a", "c"}) {
		t.Errorf("removed = %v", removed)
	}
	if got := j.Names(); !slices.Equal(got, []string{"b"}) {
		t.Errorf("Names after RemoveStale = %v", got)
	}

	snap := j.Snapshot()
	delete(snap, "b")
	if _, ok := j.Get("b"); !ok {
		t.Error("Snapshot should be a copy")
	}
}

func TestJournal_NeedsRun(t *testing.T) {
	j := New("", nil)
	if !j.NeedsRun(started, time.Hour) {
		t.Error("Fresh journal should need a run")
	}

	j.MarkRun(started)
	if j.NeedsRun(started.Add(30*time.Minute), time.Hour) {
		t.Error("Should not need a run before the interval")
	}
	if !j.NeedsRun(started.Add(time.Hour), time.Hour) {
		t.Error("Should need a run once the interval passed")
	}
}
