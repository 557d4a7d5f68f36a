// Package backend defines the search backend client used by the indexing core
// and its variant implementations: bleve, SQLite FTS5 and Solr.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/sha1n/relic-search/internal/domain"
)

// DefaultTimeout is the per-call backend timeout applied when none is configured.
const DefaultTimeout = 30 * time.Second

// Filter restricts a search to documents whose field equals Value exactly.
type Filter struct {
	Field string
	Value string
}

// Sort orders search results by a single field.
type Sort struct {
	Field      string
	Descending bool
}

// Request is a search request. Query is passed to the backend in its native
// query syntax; an empty Query matches every document.
type Request struct {
	Query   string
	Filters []Filter
	Fields  []string
	Limit   int
	Offset  int
	Sort    *Sort
}

// Hit is one matching document with the requested stored fields as strings.
type Hit struct {
	ID     string
	Fields map[string]string
}

// Field returns the named field value and whether it was present.
func (h Hit) Field(name string) (string, bool) {
	v, ok := h.Fields[name]
	return v, ok
}

// Result is a page of search hits. HitCount is the total number of matches,
// not the length of Documents.
type Result struct {
	HitCount  uint64
	Documents []Hit
}

// Backend is a full-text search backend. Add replaces documents sharing an ID.
// Commit finalizes submitted documents and may optimize the index.
// Implementations are safe for concurrent use.
type Backend interface {
	Search(ctx context.Context, req Request) (*Result, error)
	Add(ctx context.Context, docs ...domain.Document) error
	Commit(ctx context.Context) error
	Close() error
}

// Options configures backend construction.
type Options struct {
	// Timeout bounds every backend call. Zero means DefaultTimeout.
	Timeout time.Duration
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// withDeadline derives a context bounded by timeout.
func withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

// storedFields lists every field a document carries, in a stable order.
var storedFields = []string{
	domain.FieldID,
	domain.FieldRepo,
	domain.FieldFilename,
	domain.FieldContents,
	domain.FieldVersion,
	domain.FieldTimestamp,
}

// TimestampLayout is the fixed-width UTC layout used for stored timestamps.
// Lexical order equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// documentFields flattens a document into its stored field values.
func documentFields(doc domain.Document) map[string]string {
	return map[string]string{
		domain.FieldID:        doc.ID,
		domain.FieldRepo:      doc.Repo,
		domain.FieldFilename:  doc.Filename,
		domain.FieldContents:  doc.Contents,
		domain.FieldVersion:   doc.Version,
		domain.FieldTimestamp: formatTimestamp(doc.Timestamp),
	}
}

// fieldString renders a stored field value as a string. Numbers are written
// in plain decimal so numeric revisions round-trip unchanged.
func fieldString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case []any:
		if len(t) == 0 {
			return "", false
		}
		return fieldString(t[0])
	case nil:
		return "", false
	default:
		return fmt.Sprint(t), true
	}
}

func isStoredField(name string) bool {
	for _, f := range storedFields {
		if f == name {
			return true
		}
	}
	return false
}

func validateRequest(req Request) error {
	for _, f := range req.Filters {
		if !isStoredField(f.Field) {
			return fmt.Errorf("unknown filter field %q", f.Field)
		}
	}
	if req.Sort != nil && !isStoredField(req.Sort.Field) {
		return fmt.Errorf("unknown sort field %q", req.Sort.Field)
	}
	if req.Limit < 0 || req.Offset < 0 {
		return fmt.Errorf("negative limit or offset")
	}
	return nil
}

// DefaultLimit is the page size used when a request leaves Limit at zero.
const DefaultLimit = 10

func limitOrDefault(limit int) int {
	if limit == 0 {
		return DefaultLimit
	}
	return limit
}
