package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/relic-search/internal/config"
	"github.com/sha1n/relic-search/internal/httpapi"
)

const shutdownTimeout = 10 * time.Second

// StartHTTPServer serves until ctx is done, then shuts down gracefully.
func StartHTTPServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening (HTTP)", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down HTTP server: %w", err)
		}
		return nil
	}
}

// NewHTTPServer creates the HTTP server exposing the MCP SSE endpoint and the
// search API behind authentication middleware.
func NewHTTPServer(s *mcp.Server, comps *Components, settings *config.Settings) (*http.Server, error) {
	// Factory function returns the server instance for each request
	sseHandler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server {
		return s
	}, nil)

	handler, err := httpapi.NewHandler(httpapi.Config{
		Engine: comps.Engine,
		Status: comps.Journal,
		MCP:    sseHandler,
		Auth:   settings.Auth,
		Logger: comps.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", settings.Host, settings.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}
