package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/relic-search/internal/indexing"
	"github.com/sha1n/relic-search/internal/repository"
)

// DefaultMaxResults caps the matches listed by find_words.
const DefaultMaxResults = 20

// Engine is the indexing surface the MCP tools drive.
type Engine interface {
	FindWords(ctx context.Context, query string) *indexing.MatchIterator
	ReindexRepository(ctx context.Context, name string, modified []string) (indexing.PassResult, error)
}

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string

	// Engine and Repos are optional. Tools are registered only when both are set.
	Engine Engine
	Repos  repository.Provider

	MaxResults  int
	MaxFileSize int64
	Logger      *slog.Logger
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.Engine != nil && cfg.Repos != nil {
		if cfg.MaxResults <= 0 {
			cfg.MaxResults = DefaultMaxResults
		}
		if cfg.Logger == nil {
			cfg.Logger = slog.Default()
		}
		RegisterFindWordsTool(s, NewFindWordsHandler(cfg.Engine, cfg.MaxResults))
		RegisterReindexTool(s, NewReindexHandler(cfg.Engine, cfg.Logger))
		RegisterReadTool(s, NewReadHandler(cfg.Repos, cfg.MaxFileSize))
	}

	return s
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
