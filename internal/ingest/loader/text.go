package loader

import (
	"context"

	"github.com/Yates-Labs/ragify/internal/rag"
)

// TextLoader returns a plain text document as a single chunk.
type TextLoader struct{}

func (TextLoader) Extensions() []string { return []string{".txt"} }

func (TextLoader) Load(ctx context.Context, name string, data []byte) ([]rag.Chunk, error) {
	return []rag.Chunk{chunk(string(data), map[string]any{MetaSource: name})}, nil
}
