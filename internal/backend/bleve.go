package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/index/scorch/mergeplan"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/sha1n/relic-search/internal/domain"
)

// BleveBackend stores documents in an embedded bleve index.
type BleveBackend struct {
	index   bleve.Index
	timeout time.Duration
}

// forceMerger is implemented by scorch indexes.
type forceMerger interface {
	ForceMerge(ctx context.Context, mo *mergeplan.MergePlanOptions) error
}

// NewIndexMapping creates the bleve mapping for indexed documents. Only
// contents is analyzed; the other fields are stored keywords excluded from
// the default search field.
func NewIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()
	docMapping.Dynamic = false

	// Contents - analyzed for full-text search
	contentsField := bleve.NewTextFieldMapping()
	contentsField.Analyzer = standard.Name
	contentsField.Store = true
	docMapping.AddFieldMappingsAt(domain.FieldContents, contentsField)

	for _, name := range []string{domain.FieldID, domain.FieldRepo, domain.FieldFilename, domain.FieldVersion, domain.FieldTimestamp} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = true
		f.IncludeInAll = false
		docMapping.AddFieldMappingsAt(name, f)
	}

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// OpenBleve opens the index at path, creating it when it does not exist.
func OpenBleve(path string, opts Options) (*BleveBackend, error) {
	index, err := bleve.Open(path)
	if err == nil {
		return &BleveBackend{index: index, timeout: opts.timeout()}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	index, err = bleve.New(path, NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	return &BleveBackend{index: index, timeout: opts.timeout()}, nil
}

// NewMemoryBleve creates an in-memory index.
func NewMemoryBleve(opts Options) (*BleveBackend, error) {
	index, err := bleve.NewMemOnly(NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory index: %w", err)
	}
	return &BleveBackend{index: index, timeout: opts.timeout()}, nil
}

// Search implements Backend. Query uses the bleve query string syntax.
func (b *BleveBackend) Search(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := withDeadline(ctx, b.timeout)
	defer cancel()

	searchReq := bleve.NewSearchRequestOptions(b.buildQuery(req), limitOrDefault(req.Limit), req.Offset, false)
	searchReq.Fields = req.Fields
	if len(searchReq.Fields) == 0 {
		searchReq.Fields = storedFields
	}
	if req.Sort != nil {
		searchReq.SortByCustom(search.SortOrder{
			&search.SortField{Field: req.Sort.Field, Desc: req.Sort.Descending, Type: search.SortFieldAsString},
		})
	}

	res, err := b.index.SearchInContext(ctx, searchReq)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	result := &Result{HitCount: res.Total, Documents: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		fields := make(map[string]string, len(h.Fields))
		for k, v := range h.Fields {
			if s, ok := fieldString(v); ok {
				fields[k] = s
			}
		}
		result.Documents = append(result.Documents, Hit{ID: h.ID, Fields: fields})
	}
	return result, nil
}

func (b *BleveBackend) buildQuery(req Request) query.Query {
	var must []query.Query
	if req.Query != "" {
		must = append(must, bleve.NewQueryStringQuery(req.Query))
	}
	for _, f := range req.Filters {
		tq := bleve.NewTermQuery(f.Value)
		tq.SetField(f.Field)
		must = append(must, tq)
	}

	switch len(must) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return must[0]
	default:
		return bleve.NewConjunctionQuery(must...)
	}
}

// Add implements Backend with one bleve batch per call.
func (b *BleveBackend) Add(ctx context.Context, docs ...domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, documentFields(doc)); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("batch index failed: %w", err)
	}
	return nil
}

// Commit implements Backend. Batches are durable once applied, so Commit
// only merges scorch segments down to one; other index types are left alone.
func (b *BleveBackend) Commit(ctx context.Context) error {
	ctx, cancel := withDeadline(ctx, b.timeout)
	defer cancel()

	advanced, err := b.index.Advanced()
	if err != nil {
		return fmt.Errorf("failed to access index: %w", err)
	}
	if merger, ok := advanced.(forceMerger); ok {
		if err := merger.ForceMerge(ctx, &mergeplan.SingleSegmentMergePlanOptions); err != nil {
			return fmt.Errorf("force merge failed: %w", err)
		}
	}
	return nil
}

// DocCount returns the number of documents in the index.
func (b *BleveBackend) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close implements Backend.
func (b *BleveBackend) Close() error {
	return b.index.Close()
}
