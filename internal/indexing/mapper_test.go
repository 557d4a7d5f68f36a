package indexing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sha1n/relic-search/internal/domain"
)

func drain(it *MatchIterator) []domain.FileMatch {
	var out []domain.FileMatch
	for it.Next() {
		out = append(out, it.Match())
	}
	return out
}

func TestMapper_MapsHitsToFileMatches(t *testing.T) {
	b := newRecordingBackend()
	seed(t, b, "r1", "/a.txt", "42", t0)
	require.NoError(t, b.Add(context.Background(), domain.NewDocument(domain.IndexRecord{
		Repository: "r2", Path: "/b.txt", Content: "hello there", Revision: "1",
	}, t0)))

	it := NewMapper(b, 10).Find(context.Background(), "hello")
	matches := drain(it)
	require.NoError(t, it.Err())
	assert.Equal(t, []domain.FileMatch{{Filename: "/b.txt", Repository: "r2"}}, matches)

	require.Len(t, b.searches, 1)
	assert.Equal(t, "hello", b.searches[0].Query, "query passed unmodified")
	assert.Equal(t, []string{domain.FieldFilename, domain.FieldRepo}, b.searches[0].Fields)
}

func TestMapper_PagesLazily(t *testing.T) {
	b := newRecordingBackend()
	for i := range 5 {
		require.NoError(t, b.Add(context.Background(), domain.NewDocument(domain.IndexRecord{
			Repository: "r1", Path: fmt.Sprintf("/f%d", i), Content: "needle", Revision: "1",
		}, t0)))
	}
	b.reset()

	it := NewMapper(b, 2).Find(context.Background(), "needle")
	assert.Zero(t, b.count("search"), "nothing runs before Next")

	require.True(t, it.Next())
	assert.Equal(t, 1, b.count("search"))
	assert.Equal(t, uint64(5), it.Total())

	rest := drain(it)
	require.NoError(t, it.Err())
	assert.Len(t, rest, 4)
	assert.Equal(t, 3, b.count("search"), "pages of 2, 2 and 1")
	assert.Equal(t, []int{0, 2, 4}, []int{b.searches[0].Offset, b.searches[1].Offset, b.searches[2].Offset})

	assert.False(t, it.Next(), "not restartable")
	assert.Equal(t, 3, b.count("search"))
}

func TestMapper_NoMatches(t *testing.T) {
	b := newRecordingBackend()

	it := NewMapper(b, 0).Find(context.Background(), "nothing")
	assert.Empty(t, drain(it))
	assert.NoError(t, it.Err())
	assert.Equal(t, DefaultPageSize, b.searches[0].Limit)
}

func TestMapper_BackendError(t *testing.T) {
	b := newRecordingBackend()
	b.failSearch = errors.New("bad query syntax")

	it := NewMapper(b, 10).Find(context.Background(), "((")
	assert.False(t, it.Next())
	assert.True(t, domain.IsBackend(it.Err()))
	assert.ErrorContains(t, it.Err(), "bad query syntax")
}

func TestMapper_HitWithoutFields(t *testing.T) {
	b := newRecordingBackend()
	seed(t, b, "r1", "/a.txt", "1", t0)
	b.dropFields = []string{domain.FieldRepo}

	it := NewMapper(b, 10).Find(context.Background(), "x")
	assert.False(t, it.Next())
	assert.True(t, domain.IsBackend(it.Err()))
}

func TestMapper_Close(t *testing.T) {
	b := newRecordingBackend()
	seed(t, b, "r1", "/a.txt", "1", t0)
	seed(t, b, "r1", "/b.txt", "1", t0)

	it := NewMapper(b, 10).Find(context.Background(), "x")
	require.True(t, it.Next())
	it.Close()
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
}
