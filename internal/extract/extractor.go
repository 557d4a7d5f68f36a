// Package extract turns repository node content into indexable text.
package extract

import (
	"context"

	"github.com/sha1n/relic-search/internal/repository"
)

// Extractor produces indexable text for repository nodes.
type Extractor struct {
	decoder     Decoder
	maxFileSize int64
}

// NewExtractor creates an extractor. A maxFileSize of zero or less disables the size limit.
func NewExtractor(decoder Decoder, maxFileSize int64) *Extractor {
	if decoder == nil {
		decoder = NewMIMEDecoder()
	}
	return &Extractor{decoder: decoder, maxFileSize: maxFileSize}
}

// Extract decodes content of the given kind. ok is false when the content is
// not indexable: empty, too large, declined by the decoder or decoded to nothing.
func (e *Extractor) Extract(content []byte, contentKind string) (text string, ok bool) {
	if len(content) == 0 {
		return "", false
	}
	if e.maxFileSize > 0 && int64(len(content)) > e.maxFileSize {
		return "", false
	}
	if contentKind == "" {
		contentKind = repository.DefaultContentKind
	}
	return e.decoder.DecodeToText(content, contentKind)
}

// ExtractNode reads the node's content and extracts its text. Nodes without
// retrievable content (directories, symlinks) are not indexable. A read
// failure is returned as an error.
func (e *Extractor) ExtractNode(ctx context.Context, node repository.Node) (string, bool, error) {
	content, present, err := node.ReadContent(ctx)
	if err != nil {
		return "", false, err
	}
	if !present {
		return "", false, nil
	}
	text, ok := e.Extract(content, node.ContentKind())
	return text, ok, nil
}
