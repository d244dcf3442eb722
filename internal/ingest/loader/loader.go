// Package loader turns uploaded document bytes into ordered text chunks with
// source metadata. Dispatch is by file extension.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Yates-Labs/ragify/internal/rag"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrMalformed       = errors.New("malformed document")
)

// Metadata keys shared by all loaders.
const (
	MetaSource = "source"
	MetaPage   = "page"
	MetaLine   = "line"
	MetaTitle  = "title"
)

// Loader extracts chunks from a document's raw bytes.
type Loader interface {
	// Load returns the document's chunks in document order. name is recorded
	// as the source of every chunk.
	Load(ctx context.Context, name string, data []byte) ([]rag.Chunk, error)

	// Extensions lists the lower-case file extensions handled, with leading dot.
	Extensions() []string
}

var registry = buildRegistry(
	TextLoader{},
	PDFLoader{},
	DocxLoader{},
	DocLoader{},
	CSVLoader{},
)

func buildRegistry(loaders ...Loader) map[string]Loader {
	m := make(map[string]Loader)
	for _, l := range loaders {
		for _, ext := range l.Extensions() {
			m[ext] = l
		}
	}
	return m
}

// ForExtension returns the loader registered for ext (".pdf", "PDF" and "pdf" are equivalent).
func ForExtension(ext string) (Loader, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	l, ok := registry[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	return l, nil
}

// ForFile returns the loader for filename's extension.
func ForFile(filename string) (Loader, error) {
	return ForExtension(filepath.Ext(filename))
}

// Load dispatches on filename's extension and drops chunks with no visible text.
func Load(ctx context.Context, filename string, data []byte) ([]rag.Chunk, error) {
	l, err := ForFile(filename)
	if err != nil {
		return nil, err
	}
	chunks, err := l.Load(ctx, filepath.Base(filename), data)
	if err != nil {
		return nil, err
	}
	return compact(chunks), nil
}

// SupportedExtensions returns every registered extension, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func compact(chunks []rag.Chunk) []rag.Chunk {
	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// clean makes text safe for JSON payloads and vector stores.
func clean(s string) string {
	s = strings.ToValidUTF8(s, "�")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\x00", "")
}

func chunk(text string, meta map[string]any) rag.Chunk {
	return rag.Chunk{Text: clean(text), Metadata: meta}
}
