package extract

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Decoder converts raw bytes of a declared content kind into text.
// ok is false when the content is not indexable.
type Decoder interface {
	DecodeToText(content []byte, contentKind string) (text string, ok bool)
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// MIMEDecoder is a charset-aware Decoder. It declines configured media types
// and binary-looking content, honours an explicit charset parameter, detects
// byte order marks, and falls back to Windows-1252 for invalid UTF-8.
// Output is NFC-normalized with LF line endings.
type MIMEDecoder struct {
	declined []string
	fallback encoding.Encoding
}

// NewMIMEDecoder creates a decoder declining DefaultDeclinedKinds.
func NewMIMEDecoder() *MIMEDecoder {
	return NewMIMEDecoderWithKinds(DefaultDeclinedKinds)
}

// NewMIMEDecoderWithKinds creates a decoder declining the given media type patterns.
func NewMIMEDecoderWithKinds(declined []string) *MIMEDecoder {
	return &MIMEDecoder{
		declined: declined,
		fallback: charmap.Windows1252,
	}
}

// DecodeToText implements Decoder.
func (d *MIMEDecoder) DecodeToText(content []byte, contentKind string) (string, bool) {
	if len(content) == 0 {
		return "", false
	}

	mediaType, charset := parseKind(contentKind)
	if matchKind(d.declined, mediaType) {
		return "", false
	}

	raw, ok := d.decode(content, charset)
	if !ok {
		return "", false
	}

	text := norm.NFC.String(raw)
	text = normalizeNewlines(text)
	if text == "" {
		return "", false
	}
	return text, true
}

func (d *MIMEDecoder) decode(content []byte, charset string) (string, bool) {
	switch {
	case bytes.HasPrefix(content, bomUTF8):
		return string(content[len(bomUTF8):]), true
	case bytes.HasPrefix(content, bomUTF16LE), bytes.HasPrefix(content, bomUTF16BE):
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), content)
	}

	if IsBinary(content) {
		return "", false
	}

	if charset != "" {
		if enc, err := htmlindex.Get(charset); err == nil {
			if text, ok := decodeWith(enc, content); ok {
				return text, true
			}
		}
	}

	if utf8.Valid(content) {
		return string(content), true
	}
	return decodeWith(d.fallback, content)
}

func decodeWith(enc encoding.Encoding, content []byte) (string, bool) {
	decoded, _, err := transform.Bytes(enc.NewDecoder(), content)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

func normalizeNewlines(s string) string {
	if !bytes.ContainsRune([]byte(s), '\r') {
		return s
	}
	s = string(bytes.ReplaceAll([]byte(s), []byte("\r\n"), []byte("\n")))
	return string(bytes.ReplaceAll([]byte(s), []byte("\r"), []byte("\n")))
}
