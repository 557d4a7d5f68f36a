package metrics

import (
	"github.com/sha1n/relic-search/internal/indexing"
)

// passObserver implements indexing.Observer using the reindex metrics
// declared in this package.
type passObserver struct{}

// NewPassObserver creates an observer that records reindex pass metrics.
func NewPassObserver() indexing.Observer {
	return &passObserver{}
}

func (o *passObserver) PassFinished(result indexing.PassResult, err error) {
	repo := result.Repository

	outcome := "committed"
	switch {
	case err != nil:
		outcome = "failed"
	case result.UpToDate:
		outcome = "up_to_date"
	}
	ReindexPassesTotal.WithLabelValues(repo, outcome).Inc()

	ReindexRecordsAdded.WithLabelValues(repo).Add(float64(result.Added))
	ReindexNotIndexable.WithLabelValues(repo).Add(float64(result.NotIndexable))

	kind := "full"
	if result.Targeted {
		kind = "targeted"
	}
	ReindexPassDuration.WithLabelValues(repo, kind).Observe(result.Duration.Seconds())

	if err == nil && !result.StartedAt.IsZero() {
		ReindexLastSuccessTimestamp.WithLabelValues(repo).Set(float64(result.StartedAt.Add(result.Duration).Unix()))
	}
}
