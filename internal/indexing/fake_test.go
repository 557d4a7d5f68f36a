package indexing

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/sha1n/relic-search/internal/backend"
	"github.com/sha1n/relic-search/internal/domain"
)

// recordingBackend is an in-memory backend that records every call.
// Query matching is a case-sensitive substring test on contents.
type recordingBackend struct {
	mu       sync.Mutex
	docs     map[string]domain.Document
	order    []string
	calls    []string
	adds     [][]domain.Document
	searches []backend.Request

	failAdd    error
	failAddAt  int // 1-based add call that fails; 0 means every call when failAdd is set
	failCommit error
	failSearch error
	dropFields []string
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{docs: make(map[string]domain.Document)}
}

func (b *recordingBackend) Search(_ context.Context, req backend.Request) (*backend.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "search")
	b.searches = append(b.searches, req)
	if b.failSearch != nil {
		return nil, b.failSearch
	}

	var matches []domain.Document
	for _, id := range b.order {
		d := b.docs[id]
		if req.Query != "" && !strings.Contains(d.Contents, req.Query) {
			continue
		}
		fields := fieldsOf(d)
		keep := true
		for _, f := range req.Filters {
			if fields[f.Field] != f.Value {
				keep = false
			}
		}
		if keep {
			matches = append(matches, d)
		}
	}
	if req.Sort != nil && req.Sort.Field == domain.FieldTimestamp {
		sort.SliceStable(matches, func(i, j int) bool {
			if req.Sort.Descending {
				return matches[i].Timestamp.After(matches[j].Timestamp)
			}
			return matches[i].Timestamp.Before(matches[j].Timestamp)
		})
	}

	res := &backend.Result{HitCount: uint64(len(matches))}
	start := min(req.Offset, len(matches))
	end := len(matches)
	if req.Limit > 0 {
		end = min(start+req.Limit, len(matches))
	}
	for _, d := range matches[start:end] {
		all := fieldsOf(d)
		hit := backend.Hit{ID: d.ID, Fields: map[string]string{}}
		for _, f := range req.Fields {
			hit.Fields[f] = all[f]
		}
		for _, f := range b.dropFields {
			delete(hit.Fields, f)
		}
		res.Documents = append(res.Documents, hit)
	}
	return res, nil
}

func (b *recordingBackend) Add(_ context.Context, docs ...domain.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "add")
	if b.failAdd != nil && (b.failAddAt == 0 || b.failAddAt == b.addCalls()) {
		return b.failAdd
	}
	b.adds = append(b.adds, docs)
	for _, d := range docs {
		if _, exists := b.docs[d.ID]; !exists {
			b.order = append(b.order, d.ID)
		}
		b.docs[d.ID] = d
	}
	return nil
}

func (b *recordingBackend) Commit(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "commit")
	return b.failCommit
}

func (b *recordingBackend) Close() error {
	return nil
}

// addCalls counts add calls including the current one. Callers hold mu.
func (b *recordingBackend) addCalls() int {
	n := 0
	for _, c := range b.calls {
		if c == "add" {
			n++
		}
	}
	return n
}

// writeCalls returns add and commit calls in order, ignoring searches.
func (b *recordingBackend) writeCalls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, c := range b.calls {
		if c != "search" {
			out = append(out, c)
		}
	}
	return out
}

func (b *recordingBackend) count(call string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == call {
			n++
		}
	}
	return n
}

// submitted returns every document accepted by Add, in submission order.
func (b *recordingBackend) submitted() []domain.Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Document
	for _, batch := range b.adds {
		out = append(out, batch...)
	}
	return out
}

func (b *recordingBackend) submittedPaths() []string {
	var paths []string
	for _, d := range b.submitted() {
		paths = append(paths, d.Filename)
	}
	return paths
}

func (b *recordingBackend) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
	b.adds = nil
	b.searches = nil
}

func fieldsOf(d domain.Document) map[string]string {
	return map[string]string{
		domain.FieldID:        d.ID,
		domain.FieldRepo:      d.Repo,
		domain.FieldFilename:  d.Filename,
		domain.FieldContents:  d.Contents,
		domain.FieldVersion:   d.Version,
		domain.FieldTimestamp: d.Timestamp.String(),
	}
}
