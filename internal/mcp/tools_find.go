package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/relic-search/internal/domain"
	"github.com/sha1n/relic-search/internal/metrics"
)

// FindWordsArgument defines find_words parameters.
type FindWordsArgument struct {
	Query      string `json:"query" jsonschema:"Backend query string, passed through unmodified"`
	Repository string `json:"repository,omitempty" jsonschema:"Only list matches from this repository"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum number of matches to list"`
}

// FindWordsHandler handles the find_words MCP tool.
type FindWordsHandler struct {
	engine     Engine
	maxResults int
}

// NewFindWordsHandler creates a new find_words handler.
func NewFindWordsHandler(engine Engine, maxResults int) *FindWordsHandler {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &FindWordsHandler{engine: engine, maxResults: maxResults}
}

// Handle runs the query and lists matching files.
func (h *FindWordsHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args FindWordsArgument) (*mcp.CallToolResult, any, error) {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return errorResult("Query cannot be empty"), nil, nil
	}

	limit := h.maxResults
	if args.Limit > 0 && args.Limit < limit {
		limit = args.Limit
	}

	it := h.engine.FindWords(ctx, query)
	defer it.Close()

	var matches []domain.FileMatch
	for len(matches) < limit && it.Next() {
		m := it.Match()
		if args.Repository != "" && m.Repository != args.Repository {
			continue
		}
		matches = append(matches, m)
	}
	if err := it.Err(); err != nil {
		metrics.ObserveSearch("mcp", len(matches), err)
		return errorResult(fmt.Sprintf("Search failed: %s", err)), nil, nil
	}
	metrics.ObserveSearch("mcp", len(matches), nil)

	if len(matches) == 0 {
		return textResult(fmt.Sprintf("No files found for query: %s", query)), nil, nil
	}

	var sb strings.Builder
	if args.Repository == "" {
		sb.WriteString(fmt.Sprintf("Found %d files for '%s':\n\n", it.Total(), query))
	} else {
		sb.WriteString(fmt.Sprintf("Files in %s matching '%s':\n\n", args.Repository, query))
	}
	for i, m := range matches {
		sb.WriteString(fmt.Sprintf("%d. %s:%s\n", i+1, m.Repository, m.Filename))
	}
	if args.Repository == "" && it.Total() > uint64(len(matches)) {
		sb.WriteString(fmt.Sprintf("\n... and %d more files\n", it.Total()-uint64(len(matches))))
	}

	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *FindWordsHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "find_words",
		Description: "Find files containing the given words across indexed repositories",
	}
}

// RegisterFindWordsTool registers the find_words tool with an MCP server.
func RegisterFindWordsTool(server *mcp.Server, handler *FindWordsHandler) {
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
