package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sha1n/relic-search/internal/domain"
	"github.com/sha1n/relic-search/internal/indexing"
	"github.com/sha1n/relic-search/internal/metrics"
)

type handlers struct {
	engine     Engine
	status     StatusSource
	maxResults int
	logger     *slog.Logger
}

// SearchResponse is the body of GET /api/search.
type SearchResponse struct {
	Query   string             `json:"query"`
	Total   uint64             `json:"total"`
	Matches []domain.FileMatch `json:"matches"`
	// Truncated is true when more matches exist than were returned.
	Truncated bool `json:"truncated"`
}

// ReindexRequest is the optional body of POST /api/repos/{name}/reindex.
type ReindexRequest struct {
	Paths []string `json:"paths,omitempty"`
}

// PassResponse describes a finished reindex pass.
type PassResponse struct {
	Repository   string    `json:"repository"`
	Revision     string    `json:"revision"`
	Targeted     bool      `json:"targeted"`
	UpToDate     bool      `json:"up_to_date"`
	Added        int       `json:"added"`
	NotIndexable int       `json:"not_indexable"`
	Committed    bool      `json:"committed"`
	StartedAt    time.Time `json:"started_at"`
	DurationMs   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	LastRun *time.Time         `json:"last_run,omitempty"`
	Repos   []RepositoryStatus `json:"repos"`
	// Failing names the repositories whose last pass failed, sorted.
	Failing []string `json:"failing"`
}

// RepositoryStatus is the last recorded pass of one repository.
type RepositoryStatus struct {
	Name         string    `json:"name"`
	Revision     string    `json:"revision,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	Targeted     bool      `json:"targeted"`
	Added        int       `json:"added"`
	NotIndexable int       `json:"not_indexable"`
	Error        string    `json:"error,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		h.writeError(w, "query parameter q is required", http.StatusBadRequest)
		return
	}
	repo := q.Get("repo")

	limit := h.maxResults
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxResultsLimit)
	}

	it := h.engine.FindWords(r.Context(), query)
	defer it.Close()

	resp := SearchResponse{Query: query, Matches: []domain.FileMatch{}}
	for it.Next() {
		m := it.Match()
		if repo != "" && m.Repository != repo {
			continue
		}
		if len(resp.Matches) == limit {
			resp.Truncated = true
			break
		}
		resp.Matches = append(resp.Matches, m)
	}
	if err := it.Err(); err != nil {
		metrics.ObserveSearch("http", len(resp.Matches), err)
		h.logger.Error("Search failed", "query", query, "error", err)
		h.writeError(w, "search failed", http.StatusBadGateway)
		return
	}
	metrics.ObserveSearch("http", len(resp.Matches), nil)

	resp.Total = it.Total()
	if repo != "" {
		// Total is backend-wide; only the returned matches are known to be in repo.
		resp.Total = uint64(len(resp.Matches))
	} else if resp.Total > uint64(len(resp.Matches)) {
		resp.Truncated = true
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) reindex(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req ReindexRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	result, err := h.engine.ReindexRepository(r.Context(), name, req.Paths)
	if err != nil {
		if errors.Is(err, domain.ErrRepositoryNotFound) {
			h.writeError(w, "repository not found: "+name, http.StatusNotFound)
			return
		}
		h.logger.Error("Reindex failed", "repo", name, "error", err)
		resp := passResponse(result)
		resp.Error = err.Error()
		h.writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	h.writeJSON(w, http.StatusOK, passResponse(result))
}

func (h *handlers) statusReport(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Repos: []RepositoryStatus{}, Failing: []string{}}
	if last := h.status.LastRunAt(); !last.IsZero() {
		resp.LastRun = &last
	}

	snapshot := h.status.Snapshot()
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rec := snapshot[name]
		resp.Repos = append(resp.Repos, RepositoryStatus{
			Name:         name,
			Revision:     rec.Revision,
			StartedAt:    rec.StartedAt,
			Targeted:     rec.Targeted,
			Added:        rec.Added,
			NotIndexable: rec.NotIndexable,
			Error:        rec.Error,
		})
	}
	for name := range h.status.ReposWithErrors() {
		resp.Failing = append(resp.Failing, name)
	}
	sort.Strings(resp.Failing)
	h.writeJSON(w, http.StatusOK, resp)
}

func passResponse(r indexing.PassResult) PassResponse {
	return PassResponse{
		Repository:   r.Repository,
		Revision:     r.Revision.String(),
		Targeted:     r.Targeted,
		UpToDate:     r.UpToDate,
		Added:        r.Added,
		NotIndexable: r.NotIndexable,
		Committed:    r.Committed,
		StartedAt:    r.StartedAt,
		DurationMs:   r.Duration.Milliseconds(),
	}
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (h *handlers) writeError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
