package rag

import (
	"context"
	"errors"
)

// Common errors for vector index operations
var (
	ErrInvalidDimension = errors.New("invalid vector dimension")
	ErrConnectionFailed = errors.New("failed to connect to vector index")
	ErrInsertFailed     = errors.New("failed to insert records")
	ErrSearchFailed     = errors.New("failed to search vectors")
)

// Chunk is one unit of extracted document text together with its source metadata.
type Chunk struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Record is a chunk ready for storage: text, metadata and its embedding vector.
type Record struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"embedding"`
}

// RetrievedChunk is a stored chunk returned by similarity search.
// Results are ordered by descending score exactly as the index returned them.
type RetrievedChunk struct {
	ID       string         `json:"id,omitempty"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float32        `json:"score"`
}

// VectorIndex stores chunk embeddings and answers nearest-neighbour queries
// over the single shared collection.
type VectorIndex interface {
	// Upsert writes records, creating the collection on first use
	Upsert(ctx context.Context, records []Record) error

	// Search returns at most topK chunks ordered by descending similarity
	Search(ctx context.Context, queryVector []float32, topK int) ([]RetrievedChunk, error)

	// Close releases resources and closes connections
	Close() error
}

// IndexOptions provides configuration for chunk indexing
type IndexOptions struct {
	// BatchSize determines how many chunks to embed at once
	BatchSize int
}

// DefaultIndexOptions returns sensible defaults for indexing
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{BatchSize: 16}
}
