package mcp

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/relic-search/internal/domain"
	"github.com/sha1n/relic-search/internal/extract"
	"github.com/sha1n/relic-search/internal/repository"
)

// DefaultMaxReadSize caps the size of files returned by read_file.
const DefaultMaxReadSize = 256 * 1024

// ReadArgument defines read parameters.
type ReadArgument struct {
	Repository string `json:"repository" jsonschema:"Repository name as reported by find_words"`
	Path       string `json:"path" jsonschema:"File path as reported by find_words, rooted at /"`
}

// ReadHandler handles the read_file MCP tool.
type ReadHandler struct {
	repos       repository.Provider
	decoder     extract.Decoder
	maxFileSize int64
}

// NewReadHandler creates a new read handler.
func NewReadHandler(repos repository.Provider, maxFileSize int64) *ReadHandler {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxReadSize
	}
	return &ReadHandler{
		repos:       repos,
		decoder:     extract.NewMIMEDecoder(),
		maxFileSize: maxFileSize,
	}
}

// Handle reads a file at the repository's youngest revision and returns it as text.
func (h *ReadHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ReadArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Repository) == "" {
		return errorResult("Repository cannot be empty"), nil, nil
	}
	if strings.TrimSpace(args.Path) == "" {
		return errorResult("Path cannot be empty"), nil, nil
	}

	p, err := normalizePath(args.Path)
	if err != nil {
		return errorResult(fmt.Sprintf("Invalid path: %s", err)), nil, nil
	}

	repo, err := h.repos.Repository(args.Repository)
	if err != nil {
		if errors.Is(err, domain.ErrRepositoryNotFound) {
			return errorResult(fmt.Sprintf("Repository not found: %s", args.Repository)), nil, nil
		}
		return errorResult(fmt.Sprintf("Error accessing repository: %s", err)), nil, nil
	}

	node, err := repo.Node(ctx, p)
	if err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			return errorResult(fmt.Sprintf("File not found: %s", p)), nil, nil
		}
		return errorResult(fmt.Sprintf("Error accessing file: %s", err)), nil, nil
	}

	if node.Kind() == repository.KindDirectory {
		return errorResult("Cannot read directory, please specify a file path"), nil, nil
	}

	content, ok, err := node.ReadContent(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("Error reading file: %s", err)), nil, nil
	}
	if !ok {
		return errorResult(fmt.Sprintf("File has no readable content: %s", p)), nil, nil
	}

	if int64(len(content)) > h.maxFileSize {
		return errorResult(fmt.Sprintf("File too large (%.2f KB). Maximum allowed size is %.2f KB",
			float64(len(content))/1024, float64(h.maxFileSize)/1024)), nil, nil
	}

	text, ok := h.decoder.DecodeToText(content, node.ContentKind())
	if !ok {
		return errorResult("Cannot display binary file content"), nil, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**File**: `%s`\n", p))
	sb.WriteString(fmt.Sprintf("**Repository**: %s\n", args.Repository))
	sb.WriteString(fmt.Sprintf("**Size**: %d bytes\n\n", len(content)))
	sb.WriteString(fmt.Sprintf("```%s\n%s\n```", extensionToLanguage(path.Ext(p)), text))

	return textResult(sb.String()), nil, nil
}

// normalizePath roots p at "/" and rejects parent-directory segments.
func normalizePath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("path traversal is not allowed")
		}
	}
	return repository.NormalizePath(p), nil
}

var languages = map[string]string{
	"go":    "go",
	"py":    "python",
	"js":    "javascript",
	"ts":    "typescript",
	"tsx":   "tsx",
	"java":  "java",
	"kt":    "kotlin",
	"rs":    "rust",
	"c":     "c",
	"h":     "c",
	"cpp":   "cpp",
	"cc":    "cpp",
	"cs":    "csharp",
	"rb":    "ruby",
	"sh":    "bash",
	"sql":   "sql",
	"html":  "html",
	"css":   "css",
	"json":  "json",
	"yaml":  "yaml",
	"yml":   "yaml",
	"toml":  "toml",
	"xml":   "xml",
	"md":    "markdown",
	"proto": "protobuf",
	"tf":    "terraform",
}

// extensionToLanguage maps a file extension to a code block language hint.
func extensionToLanguage(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if lang, ok := languages[ext]; ok {
		return lang
	}
	return ext
}

// GetToolDefinition returns the MCP tool definition.
func (h *ReadHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "read_file",
		Description: "Read a file from an indexed repository at its youngest revision",
	}
}

// RegisterReadTool registers the read tool with an MCP server.
func RegisterReadTool(server *mcp.Server, handler *ReadHandler) {
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
