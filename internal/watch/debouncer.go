package watch

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Debouncer coalesces change notifications per repository. Names added
// within window of each other are emitted once, as a single sorted batch.
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]bool
	output  chan []string
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer emitting after window of quiet.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]bool),
		output:  make(chan []string, 10),
	}
}

// Add records a change for the named repository.
func (d *Debouncer) Add(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.pending[name] = true

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	names := make([]string, 0, len(d.pending))
	for name := range d.pending {
		names = append(names, name)
	}
	sort.Strings(names)
	d.pending = make(map[string]bool)

	select {
	case d.output <- names:
	default:
		slog.Warn("Debouncer output full, dropping batch", "repos", len(names))
	}
}

// Output returns the channel of debounced repository name batches.
func (d *Debouncer) Output() <-chan []string {
	return d.output
}

// Stop stops the debouncer and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
