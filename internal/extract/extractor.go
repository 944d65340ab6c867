// Package extract provides text extraction from uploaded document formats.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned when no extraction function exists for a file's
// extension. Callers treat this as "skip the file", not as a failure.
var ErrUnsupported = errors.New("unsupported file type")

type extractFunc func(content []byte) (string, error)

// Extractor extracts plain text from document files. The set of supported
// formats is a closed table keyed by lower-case extension.
type Extractor struct {
	byExt map[string]extractFunc
}

// NewExtractor returns an Extractor supporting .pdf, .docx, and .txt.
func NewExtractor() *Extractor {
	return &Extractor{
		byExt: map[string]extractFunc{
			".pdf":  extractPDF,
			".docx": extractDOCX,
			".txt":  extractPlain,
		},
	}
}

// Supported reports whether files with the given extension (leading dot,
// any case) can be extracted.
func (e *Extractor) Supported(ext string) bool {
	_, ok := e.byExt[strings.ToLower(ext)]
	return ok
}

// Extract reads the file at path and returns its text content. The format
// is chosen by the file's extension. Returns ErrUnsupported for extensions
// outside the table, or an error if the file cannot be read or parsed.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	fn, ok := e.byExt[strings.ToLower(ext)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	return fn(content)
}
