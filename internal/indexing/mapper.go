package indexing

import (
	"context"
	"fmt"

	"github.com/sha1n/relic-search/internal/backend"
	"github.com/sha1n/relic-search/internal/domain"
)

// DefaultPageSize is the number of hits fetched per backend search call.
const DefaultPageSize = 50

// Mapper runs queries against the backend and maps hits to file matches.
type Mapper struct {
	backend  backend.Backend
	pageSize int
}

// NewMapper creates a mapper fetching pageSize hits per backend call.
func NewMapper(b backend.Backend, pageSize int) *Mapper {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Mapper{backend: b, pageSize: pageSize}
}

// Find returns a lazy iterator over the matches of query. The query is passed
// to the backend unmodified. No backend call happens until the first Next.
func (m *Mapper) Find(ctx context.Context, query string) *MatchIterator {
	return &MatchIterator{ctx: ctx, mapper: m, query: query}
}

// MatchIterator is a forward-only sequence of file matches, fetched from the
// backend one page at a time. It cannot be restarted.
//
//	it := mapper.Find(ctx, "hello")
//	defer it.Close()
//	for it.Next() {
//		m := it.Match()
//	}
//	if err := it.Err(); err != nil { ... }
type MatchIterator struct {
	ctx    context.Context
	mapper *Mapper
	query  string

	page    []backend.Hit
	offset  int
	total   uint64
	fetched bool
	current domain.FileMatch
	err     error
	done    bool
}

// Next advances to the next match.
func (it *MatchIterator) Next() bool {
	if it.done {
		return false
	}

	if len(it.page) == 0 {
		if it.fetched && uint64(it.offset) >= it.total {
			it.done = true
			return false
		}
		if !it.fetchPage() {
			it.done = true
			return false
		}
	}

	hit := it.page[0]
	it.page = it.page[1:]

	filename, okFile := hit.Field(domain.FieldFilename)
	repo, okRepo := hit.Field(domain.FieldRepo)
	if !okFile || !okRepo {
		it.err = &domain.BackendError{Op: "search", Err: fmt.Errorf("hit %q lacks %s or %s", hit.ID, domain.FieldFilename, domain.FieldRepo)}
		it.done = true
		return false
	}
	it.current = domain.FileMatch{Filename: filename, Repository: repo}
	return true
}

func (it *MatchIterator) fetchPage() bool {
	res, err := it.mapper.backend.Search(it.ctx, backend.Request{
		Query:  it.query,
		Fields: []string{domain.FieldFilename, domain.FieldRepo},
		Limit:  it.mapper.pageSize,
		Offset: it.offset,
	})
	if err != nil {
		it.err = &domain.BackendError{Op: "search", Err: err}
		return false
	}

	it.fetched = true
	it.total = res.HitCount
	it.page = res.Documents
	it.offset += len(res.Documents)
	return len(it.page) > 0
}

// Match returns the current match.
func (it *MatchIterator) Match() domain.FileMatch {
	return it.current
}

// Total returns the backend's total hit count, known after the first Next.
func (it *MatchIterator) Total() uint64 {
	return it.total
}

// Err returns the error that ended iteration, if any.
func (it *MatchIterator) Err() error {
	return it.err
}

// Close ends the iteration. Further calls to Next return false.
func (it *MatchIterator) Close() {
	it.done = true
	it.page = nil
}
