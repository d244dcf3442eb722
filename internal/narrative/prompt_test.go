package narrative

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Yates-Labs/ragify/internal/persona"
	"github.com/Yates-Labs/ragify/internal/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeContext_Format(t *testing.T) {
	chunks := []rag.RetrievedChunk{
		{Text: "X is a <thing> & more", Metadata: map[string]any{"source": "x.txt", "page": 2}, Score: 0.5},
		{Text: "second", Score: 0.25},
	}

	got, err := SerializeContext(chunks)
	require.NoError(t, err)

	want := `[{"pageContent":"X is a <thing> & more","metadata":{"page":2,"source":"x.txt"},"score":0.5},` +
		`{"pageContent":"second","metadata":{},"score":0.25}]`
	assert.Equal(t, want, got)
}

func TestSerializeContext_Empty(t *testing.T) {
	got, err := SerializeContext(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", got)
}

func TestSerializeContext_RoundTrips(t *testing.T) {
	got, err := SerializeContext([]rag.RetrievedChunk{{Text: "line1\n\"quoted\"", Score: 1}})
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &decoded))
	assert.Equal(t, "line1\n\"quoted\"", decoded[0]["pageContent"])
}

func TestFitContext_NoLimit(t *testing.T) {
	chunks := []rag.RetrievedChunk{{Text: strings.Repeat("a", 1000)}, {Text: "b"}}

	fitted, serialized, err := FitContext(chunks, 0)
	require.NoError(t, err)
	assert.Equal(t, chunks, fitted)
	assert.Contains(t, serialized, "aaaa")
}

func TestFitContext_DropsLowestScoreFirst(t *testing.T) {
	chunks := []rag.RetrievedChunk{
		{Text: strings.Repeat("a", 40), Score: 0.9},
		{Text: strings.Repeat("b", 40), Score: 0.5},
		{Text: strings.Repeat("c", 40), Score: 0.1},
	}
	one, err := SerializeContext(chunks[:1])
	require.NoError(t, err)
	two, err := SerializeContext(chunks[:2])
	require.NoError(t, err)

	fitted, serialized, err := FitContext(chunks, len(two))
	require.NoError(t, err)
	assert.Equal(t, chunks[:2], fitted)
	assert.Equal(t, two, serialized)

	fitted, _, err = FitContext(chunks, len(one))
	require.NoError(t, err)
	assert.Equal(t, chunks[:1], fitted)

	// input is not modified
	assert.Len(t, chunks, 3)
}

func TestFitContext_TruncatesSingleChunk(t *testing.T) {
	chunks := []rag.RetrievedChunk{{Text: strings.Repeat("é", 500), Score: 0.9}}

	fitted, serialized, err := FitContext(chunks, 200)
	require.NoError(t, err)
	require.Len(t, fitted, 1)
	assert.LessOrEqual(t, utf8.RuneCountInString(serialized), 200)
	assert.True(t, utf8.ValidString(fitted[0].Text))
	assert.Less(t, len([]rune(fitted[0].Text)), 500)
	assert.Equal(t, strings.Repeat("é", 500), chunks[0].Text)
}

func TestAssembleSystemPrompt(t *testing.T) {
	withPlaceholder := "Answer from this:\n" + persona.ContextPlaceholder + "\nBe brief."
	assert.Equal(t, "Answer from this:\n[1]\nBe brief.", AssembleSystemPrompt(withPlaceholder, "[1]"))

	assert.Equal(t, "Be brief.\n\nContext:\n[1]", AssembleSystemPrompt("Be brief.", "[1]"))
}

func TestAssembleSystemPrompt_BuiltinPersonas(t *testing.T) {
	table := persona.Default()
	serialized, err := SerializeContext([]rag.RetrievedChunk{{Text: "X is a thing", Score: 0.8}})
	require.NoError(t, err)

	for _, key := range table.Keys() {
		tmpl, _ := table.Lookup(key)
		prompt := AssembleSystemPrompt(tmpl, serialized)
		assert.Contains(t, prompt, "X is a thing", key)
		assert.NotContains(t, prompt, persona.ContextPlaceholder, key)
	}
}
