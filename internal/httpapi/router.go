// Package httpapi exposes search, reindex and status over HTTP, alongside the
// MCP SSE endpoint and Prometheus metrics.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sha1n/relic-search/internal/config"
	"github.com/sha1n/relic-search/internal/indexing"
	"github.com/sha1n/relic-search/internal/journal"
)

// DefaultMaxResults caps /api/search when no limit is given.
const (
	DefaultMaxResults = 100
	maxResultsLimit   = 1000
)

// Engine is the indexing surface used by the HTTP handlers.
type Engine interface {
	FindWords(ctx context.Context, query string) *indexing.MatchIterator
	ReindexRepository(ctx context.Context, name string, modified []string) (indexing.PassResult, error)
}

// StatusSource reports the last known pass outcome per repository.
type StatusSource interface {
	LastRunAt() time.Time
	ReposWithErrors() map[string]string
	Snapshot() map[string]journal.PassRecord
}

// Config configures the HTTP surface.
type Config struct {
	Engine Engine
	// Status is optional; without it /api/status is not mounted.
	Status StatusSource
	// MCP is optional; when set it is mounted at /sse.
	MCP        http.Handler
	Auth       config.AuthSettings
	MaxResults int
	Logger     *slog.Logger
}

// NewHandler assembles the router with auth, metrics and request logging.
func NewHandler(cfg Config) (http.Handler, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("http api requires an engine")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	auth, err := NewAuthMiddleware(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth middleware: %w", err)
	}

	h := &handlers{engine: cfg.Engine, status: cfg.Status, maxResults: maxResults, logger: logger}

	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/search", h.search).Methods(http.MethodGet)
	api.HandleFunc("/repos/{name}/reindex", h.reindex).Methods(http.MethodPost)
	if cfg.Status != nil {
		api.HandleFunc("/status", h.statusReport).Methods(http.MethodGet)
	}

	if cfg.MCP != nil {
		r.PathPrefix("/sse").Handler(cfg.MCP)
	}

	return loggingMiddleware(logger)(auth(r)), nil
}
