package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// IndexChunks embeds chunks in batches and upserts them into the index.
// It returns the number of chunks written.
func IndexChunks(
	ctx context.Context,
	chunks []Chunk,
	embedder Embedder,
	index VectorIndex,
	opts IndexOptions,
) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	if embedder == nil {
		return 0, fmt.Errorf("%w: embedder", ErrNilComponent)
	}
	if index == nil {
		return 0, fmt.Errorf("%w: vector index", ErrNilComponent)
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultIndexOptions().BatchSize
	}

	written := 0
	for batchStart := 0; batchStart < len(chunks); batchStart += batchSize {
		batchEnd := min(batchStart+batchSize, len(chunks))
		batch := chunks[batchStart:batchEnd]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		embeddingRecords, err := embedder.Embed(ctx, texts)
		if err != nil {
			return written, fmt.Errorf("failed to generate embeddings for batch starting at %d: %w", batchStart, err)
		}
		if len(embeddingRecords) != len(batch) {
			return written, fmt.Errorf("%w: batch starting at %d: expected %d embeddings, got %d",
				ErrEmbeddingFailed, batchStart, len(batch), len(embeddingRecords))
		}

		records := make([]Record, len(batch))
		for i, chunk := range batch {
			records[i] = Record{
				ID:        uuid.New().String(),
				Text:      chunk.Text,
				Metadata:  chunk.Metadata,
				Embedding: embeddingRecords[i].Embedding,
			}
		}

		if err := index.Upsert(ctx, records); err != nil {
			return written, fmt.Errorf("failed to insert batch starting at %d: %w", batchStart, err)
		}
		written += len(batch)
	}

	return written, nil
}
