package extract

import (
	"mime"
	"path"
	"strings"
)

// DefaultDeclinedKinds contains content kinds that are never decoded to text.
// Patterns use path.Match syntax against the bare media type.
var DefaultDeclinedKinds = []string{
	// Media
	"image/*", "audio/*", "video/*", "font/*",

	// Archives
	"application/zip", "application/gzip", "application/x-gzip",
	"application/x-tar", "application/x-bzip2", "application/x-xz",
	"application/x-7z-compressed", "application/vnd.rar", "application/x-rar-compressed",
	"application/java-archive",

	// Executables and libraries
	"application/x-executable", "application/x-sharedlib", "application/x-mach-binary",
	"application/x-msdownload", "application/wasm",

	// Documents
	"application/pdf", "application/msword", "application/vnd.ms-*",
	"application/vnd.openxmlformats-officedocument.*", "application/vnd.oasis.opendocument.*",

	// Other
	"application/x-sqlite3", "application/vnd.sqlite3",
}

// binarySniffLen is how many leading bytes are inspected for NUL bytes.
const binarySniffLen = 8000

// IsBinary checks if the content appears to be binary by looking for null bytes
// in its leading bytes. This is the heuristic git uses.
func IsBinary(content []byte) bool {
	checkLen := min(len(content), binarySniffLen)

	for i := range checkLen {
		if content[i] == 0 {
			return true
		}
	}
	return false
}

// parseKind splits a content kind into its lower-cased media type and charset.
func parseKind(contentKind string) (mediaType, charset string) {
	mediaType, params, err := mime.ParseMediaType(contentKind)
	if err != nil {
		bare, _, _ := strings.Cut(contentKind, ";")
		return strings.ToLower(strings.TrimSpace(bare)), ""
	}
	return mediaType, params["charset"]
}

// matchKind reports whether mediaType matches any of the patterns.
func matchKind(patterns []string, mediaType string) bool {
	for _, pattern := range patterns {
		if matched, _ := path.Match(pattern, mediaType); matched {
			return true
		}
	}
	return false
}
