package rag

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrEmptyQuery   = errors.New("query cannot be empty")
	ErrNoEmbedding  = errors.New("no embedding generated for query")
	ErrInvalidTopK  = errors.New("topK must be positive")
	ErrNilComponent = errors.New("retriever component cannot be nil")
)

// Retriever provides high-level semantic retrieval over the shared collection.
type Retriever struct {
	embedder Embedder
	index    VectorIndex
}

// NewRetriever creates a new Retriever instance.
func NewRetriever(embedder Embedder, index VectorIndex) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder", ErrNilComponent)
	}
	if index == nil {
		return nil, fmt.Errorf("%w: vector index", ErrNilComponent)
	}

	return &Retriever{
		embedder: embedder,
		index:    index,
	}, nil
}

// RetrieveContextForQuery embeds the query and returns the topK nearest chunks
// unchanged: no filtering, de-duplication or score threshold is applied.
func (r *Retriever) RetrieveContextForQuery(ctx context.Context, query string, topK int) ([]RetrievedChunk, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidTopK, topK)
	}

	embeddingRecords, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddingRecords) == 0 {
		return nil, ErrNoEmbedding
	}

	chunks, err := r.index.Search(ctx, embeddingRecords[0].Embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search for query: %w", err)
	}

	return chunks, nil
}
