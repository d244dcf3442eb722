package narrative

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Yates-Labs/ragify/internal/persona"
	"github.com/Yates-Labs/ragify/internal/rag"
)

// ContextFormatV1 identifies the layout produced by SerializeContext: a JSON
// array of {"pageContent", "metadata", "score"} objects in retrieval order.
const ContextFormatV1 = "ragify.context.v1"

type contextEntry struct {
	PageContent string         `json:"pageContent"`
	Metadata    map[string]any `json:"metadata"`
	Score       float32        `json:"score"`
}

// SerializeContext renders retrieved chunks in ContextFormatV1.
// Keys are emitted in a stable order and HTML characters are left unescaped.
func SerializeContext(chunks []rag.RetrievedChunk) (string, error) {
	entries := make([]contextEntry, len(chunks))
	for i, c := range chunks {
		meta := c.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		entries[i] = contextEntry{PageContent: c.Text, Metadata: meta, Score: c.Score}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entries); err != nil {
		return "", fmt.Errorf("serialize context: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// FitContext serializes chunks, keeping the result within maxChars runes.
// Trailing (lowest-score) chunks are dropped first; if a single chunk is still
// too long its text is cut. maxChars <= 0 disables the limit.
func FitContext(chunks []rag.RetrievedChunk, maxChars int) ([]rag.RetrievedChunk, string, error) {
	fitted := append([]rag.RetrievedChunk(nil), chunks...)

	for {
		serialized, err := SerializeContext(fitted)
		if err != nil {
			return nil, "", err
		}

		size := utf8.RuneCountInString(serialized)
		if maxChars <= 0 || size <= maxChars || len(fitted) == 0 {
			return fitted, serialized, nil
		}

		if len(fitted) > 1 {
			fitted = fitted[:len(fitted)-1]
			continue
		}

		// Each removed rune shrinks the output by at least one rune.
		text := []rune(fitted[0].Text)
		if len(text) == 0 {
			fitted = fitted[:0]
			continue
		}
		keep := max(len(text)-(size-maxChars), 0)
		only := fitted[0]
		only.Text = string(text[:keep])
		fitted[0] = only
	}
}

// AssembleSystemPrompt splices serialized context into a persona template.
// Templates without a context placeholder get the context appended.
func AssembleSystemPrompt(template, serializedContext string) string {
	if strings.Contains(template, persona.ContextPlaceholder) {
		return strings.ReplaceAll(template, persona.ContextPlaceholder, serializedContext)
	}
	return template + "\n\nContext:\n" + serializedContext
}
