package indexing

import (
	"context"
	"errors"
	"time"

	"github.com/sha1n/relic-search/internal/backend"
	"github.com/sha1n/relic-search/internal/domain"
)

const (
	// DefaultBatchSize is the maximum number of documents per backend add call
	DefaultBatchSize = 100

	// DefaultBatchBytes is the maximum content bytes per backend add call (10MB)
	DefaultBatchBytes = 10 * 1024 * 1024
)

var (
	// ErrPassAborted is returned by Commit after an Add failed.
	ErrPassAborted = errors.New("reindex pass aborted")

	// ErrPassCommitted is returned when a writer is used after Commit.
	ErrPassCommitted = errors.New("reindex pass already committed")
)

// Writer submits index records of one reindex pass to the backend in batches
// and commits the pass exactly once. After any failed add the writer refuses
// further work and never commits.
type Writer struct {
	backend    backend.Backend
	batchSize  int
	batchBytes int
	now        func() time.Time

	pending      []domain.Document
	pendingBytes int
	added        int
	err          error
	committed    bool
}

// NewWriter creates a writer flushing every batchSize records or batchBytes
// content bytes, whichever comes first. Non-positive limits use the defaults.
func NewWriter(b backend.Backend, batchSize, batchBytes int, now func() time.Time) *Writer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchBytes <= 0 {
		batchBytes = DefaultBatchBytes
	}
	if now == nil {
		now = time.Now
	}
	return &Writer{
		backend:    b,
		batchSize:  batchSize,
		batchBytes: batchBytes,
		now:        now,
	}
}

// Add queues a record, flushing the batch when a limit is reached.
func (w *Writer) Add(ctx context.Context, r domain.IndexRecord) error {
	if w.committed {
		return ErrPassCommitted
	}
	if w.err != nil {
		return w.err
	}

	w.pending = append(w.pending, domain.NewDocument(r, w.now()))
	w.pendingBytes += len(r.Content)

	if len(w.pending) >= w.batchSize || w.pendingBytes >= w.batchBytes {
		return w.flush(ctx)
	}
	return nil
}

// Commit flushes queued records and commits the pass.
func (w *Writer) Commit(ctx context.Context) error {
	if w.committed {
		return ErrPassCommitted
	}
	if w.err != nil {
		return errors.Join(ErrPassAborted, w.err)
	}
	if err := w.flush(ctx); err != nil {
		return errors.Join(ErrPassAborted, err)
	}

	if err := w.backend.Commit(ctx); err != nil {
		w.err = &domain.BackendError{Op: "commit", Err: err}
		return w.err
	}
	w.committed = true
	return nil
}

// Added returns the number of records accepted by the backend so far.
func (w *Writer) Added() int {
	return w.added
}

func (w *Writer) flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	if err := w.backend.Add(ctx, w.pending...); err != nil {
		w.err = &domain.BackendError{Op: "add", Err: err}
		w.pending = nil
		return w.err
	}
	w.added += len(w.pending)
	w.pending = nil
	w.pendingBytes = 0
	return nil
}
