package repository

import (
	"mime"
	"path"
	"strings"
)

// DefaultContentKind is reported when nothing is known about a file.
const DefaultContentKind = "application/octet-stream"

// sourceKinds covers extensions the platform MIME table usually lacks.
var sourceKinds = map[string]string{
	".go":    "text/x-go",
	".mod":   "text/x-go.mod",
	".sum":   "text/plain",
	".ts":    "text/typescript",
	".tsx":   "text/typescript",
	".js":    "text/javascript",
	".jsx":   "text/javascript",
	".mjs":   "text/javascript",
	".py":    "text/x-python",
	".rb":    "text/x-ruby",
	".rs":    "text/x-rust",
	".java":  "text/x-java",
	".kt":    "text/x-kotlin",
	".c":     "text/x-c",
	".h":     "text/x-c",
	".cpp":   "text/x-c++",
	".hpp":   "text/x-c++",
	".cc":    "text/x-c++",
	".cs":    "text/x-csharp",
	".sh":    "text/x-sh",
	".bash":  "text/x-sh",
	".sql":   "text/x-sql",
	".md":    "text/markdown",
	".mdx":   "text/markdown",
	".rst":   "text/x-rst",
	".txt":   "text/plain",
	".yaml":  "text/x-yaml",
	".yml":   "text/x-yaml",
	".toml":  "text/x-toml",
	".ini":   "text/plain",
	".conf":  "text/plain",
	".env":   "text/plain",
	".json":  "application/json",
	".xml":   "text/xml",
	".html":  "text/html",
	".htm":   "text/html",
	".css":   "text/css",
	".proto": "text/x-protobuf",
}

// wellKnownNames maps extensionless file names to kinds.
var wellKnownNames = map[string]string{
	"makefile":   "text/x-makefile",
	"dockerfile": "text/x-dockerfile",
	"license":    "text/plain",
	"readme":     "text/plain",
	"authors":    "text/plain",
	"changelog":  "text/plain",
}

// ContentKindForPath guesses a node's content kind from its name.
func ContentKindForPath(p string) string {
	base := path.Base(p)
	ext := strings.ToLower(path.Ext(base))
	if ext == "" {
		if kind, ok := wellKnownNames[strings.ToLower(base)]; ok {
			return kind
		}
		return DefaultContentKind
	}
	if kind, ok := sourceKinds[ext]; ok {
		return kind
	}
	if kind := mime.TypeByExtension(ext); kind != "" {
		return kind
	}
	return DefaultContentKind
}

// NormalizePath converts a repository-relative or rooted path into the
// canonical rooted form ("/a/b"). The root is "/".
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	cleaned := path.Clean("/" + strings.TrimPrefix(p, "/"))
	return cleaned
}

// relativePath strips the leading slash of a normalized path.
func relativePath(p string) string {
	return strings.TrimPrefix(NormalizePath(p), "/")
}
