package indexing

import (
	"context"
	"fmt"

	"github.com/sha1n/relic-search/internal/backend"
	"github.com/sha1n/relic-search/internal/domain"
)

// Staleness is the most recently indexed revision of a repository.
type Staleness struct {
	LastIndexed domain.Revision
	Indexed     bool
}

// UpToDate reports whether the repository at youngest needs no reindexing.
// Revisions are compared for equality only.
func (s Staleness) UpToDate(youngest domain.Revision) bool {
	return s.Indexed && s.LastIndexed == youngest
}

// StalenessChecker reads the last indexed revision of a repository from the backend.
type StalenessChecker struct {
	backend backend.Backend
}

// NewStalenessChecker creates a checker over b.
func NewStalenessChecker(b backend.Backend) *StalenessChecker {
	return &StalenessChecker{backend: b}
}

// CheckStale returns the version of the most recently indexed document of the
// repository. The result is never cached.
func (c *StalenessChecker) CheckStale(ctx context.Context, repository string) (Staleness, error) {
	res, err := c.backend.Search(ctx, backend.Request{
		Filters: []backend.Filter{{Field: domain.FieldRepo, Value: repository}},
		Fields:  []string{domain.FieldVersion},
		Limit:   1,
		Sort:    &backend.Sort{Field: domain.FieldTimestamp, Descending: true},
	})
	if err != nil {
		return Staleness{}, &domain.BackendError{Op: "search", Err: err}
	}
	if res.HitCount == 0 || len(res.Documents) == 0 {
		return Staleness{}, nil
	}

	hit := res.Documents[0]
	version, ok := hit.Field(domain.FieldVersion)
	if !ok {
		return Staleness{}, &domain.BackendError{Op: "search", Err: fmt.Errorf("hit %q lacks %s", hit.ID, domain.FieldVersion)}
	}
	return Staleness{LastIndexed: domain.Revision(version), Indexed: true}, nil
}
