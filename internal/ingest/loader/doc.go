package loader

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Yates-Labs/ragify/internal/rag"
)

// minRunLength is the shortest printable run kept from a binary document.
const minRunLength = 6

// DocLoader performs best-effort extraction from legacy binary Word files.
// It collects printable runs, trying both UTF-16LE and 8-bit encodings, and
// keeps whichever yields more letters. Formatting and field codes are lost.
type DocLoader struct{}

func (DocLoader) Extensions() []string { return []string{".doc"} }

func (DocLoader) Load(ctx context.Context, name string, data []byte) ([]rag.Chunk, error) {
	wide := utf16Runs(data)
	narrow := asciiRuns(data)

	text := narrow
	if letterCount(wide) > letterCount(narrow) {
		text = wide
	}
	return []rag.Chunk{chunk(text, map[string]any{MetaSource: name})}, nil
}

func utf16Runs(data []byte) string {
	var (
		out strings.Builder
		run []rune
	)
	flush := func() {
		if len(run) >= minRunLength {
			out.WriteString(strings.TrimSpace(string(run)))
			out.WriteByte('\n')
		}
		run = run[:0]
	}

	for i := 0; i+1 < len(data); i += 2 {
		r := rune(data[i]) | rune(data[i+1])<<8
		switch {
		case r == '\r' || r == '\n' || r == 0x0B:
			// paragraph and line marks
			flush()
		case r == '\t' || (r < utf8.RuneSelf && r >= 0x20 && r < 0x7F):
			run = append(run, r)
		case r >= 0xA0 && r < 0x0590 && unicode.IsPrint(r):
			// Latin, Greek and Cyrillic; higher code points are mostly pairs of 8-bit text
			run = append(run, r)
		case r >= 0x2010 && r <= 0x2026:
			// dashes and typographic quotes
			run = append(run, r)
		default:
			flush()
		}
	}
	flush()
	return strings.TrimSpace(out.String())
}

func asciiRuns(data []byte) string {
	var (
		out strings.Builder
		run []byte
	)
	flush := func() {
		if len(run) >= minRunLength {
			out.WriteString(strings.TrimSpace(string(run)))
			out.WriteByte('\n')
		}
		run = run[:0]
	}

	for _, c := range data {
		switch {
		case c == '\r' || c == '\n':
			flush()
		case c == '\t' || (c >= 0x20 && c < 0x7F):
			run = append(run, c)
		default:
			flush()
		}
	}
	flush()
	return strings.TrimSpace(out.String())
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
