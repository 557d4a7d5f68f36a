package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/relic-search/internal/domain"
	"github.com/sha1n/relic-search/internal/indexing"
)

// ReindexArgument defines reindex_repository parameters.
type ReindexArgument struct {
	Repository string   `json:"repository" jsonschema:"Repository name"`
	Paths      []string `json:"paths,omitempty" jsonschema:"Changed file paths to reindex. Omit for a full pass, skipped when the index is current"`
}

// ReindexHandler handles the reindex_repository MCP tool.
type ReindexHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewReindexHandler creates a new reindex_repository handler.
func NewReindexHandler(engine Engine, logger *slog.Logger) *ReindexHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReindexHandler{engine: engine, logger: logger}
}

// Handle runs one reindex pass and summarizes it.
func (h *ReindexHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ReindexArgument) (*mcp.CallToolResult, any, error) {
	name := strings.TrimSpace(args.Repository)
	if name == "" {
		return errorResult("Repository cannot be empty"), nil, nil
	}

	h.logger.Info("Reindex requested", "repo", name, "paths", len(args.Paths), "surface", "mcp")
	result, err := h.engine.ReindexRepository(ctx, name, args.Paths)
	if err != nil {
		if errors.Is(err, domain.ErrRepositoryNotFound) {
			return errorResult(fmt.Sprintf("Repository not found: %s", name)), nil, nil
		}
		return errorResult(fmt.Sprintf("Reindex failed: %s", err)), nil, nil
	}

	return textResult(FormatPassResult(result)), nil, nil
}

// FormatPassResult renders a pass summary as a single line.
func FormatPassResult(r indexing.PassResult) string {
	if r.UpToDate {
		return fmt.Sprintf("Repository %s is up to date at revision %s", r.Repository, r.Revision)
	}
	kind := "full"
	if r.Targeted {
		kind = "targeted"
	}
	return fmt.Sprintf("Reindexed %s at revision %s (%s pass): %d files added, %d not indexable, took %s",
		r.Repository, r.Revision, kind, r.Added, r.NotIndexable, r.Duration.Round(time.Millisecond))
}

// GetToolDefinition returns the MCP tool definition.
func (h *ReindexHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "reindex_repository",
		Description: "Bring the search index of a repository up to date, optionally for an explicit set of changed paths",
	}
}

// RegisterReindexTool registers the reindex_repository tool with an MCP server.
func RegisterReindexTool(server *mcp.Server, handler *ReindexHandler) {
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
