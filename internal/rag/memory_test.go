package rag

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIndex_SearchOrdersByScore(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(3)

	require.NoError(t, idx.Upsert(ctx, []Record{
		{ID: "a", Text: "east", Embedding: []float32{1, 0, 0}},
		{ID: "b", Text: "north", Embedding: []float32{0, 1, 0}},
		{ID: "c", Text: "north-east", Embedding: []float32{1, 1, 0}},
	}))

	chunks, err := idx.Search(ctx, []float32{1, 0.2, 0}, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "east", chunks[0].Text)
	assert.Equal(t, "north-east", chunks[1].Text)
	assert.Greater(t, chunks[0].Score, chunks[1].Score)
}

func TestMemoryIndex_UpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	require.NoError(t, idx.Upsert(ctx, []Record{{ID: "a", Text: "old", Embedding: []float32{1, 0}}}))
	require.NoError(t, idx.Upsert(ctx, []Record{{ID: "a", Text: "new", Embedding: []float32{1, 0}}}))
	require.NoError(t, idx.Upsert(ctx, []Record{{Text: "generated id", Embedding: []float32{0, 1}}}))

	assert.Equal(t, 2, idx.Len())
	chunks, err := idx.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "new", chunks[0].Text)
}

func TestMemoryIndex_RejectsWrongDimension(t *testing.T) {
	idx := NewMemoryIndex(3)

	err := idx.Upsert(context.Background(), []Record{{Embedding: []float32{1}}})
	assert.ErrorIs(t, err, ErrInvalidDimension)

	_, err = idx.Search(context.Background(), []float32{1}, 1)
	assert.ErrorIs(t, err, ErrInvalidDimension)
}

func TestMemoryIndex_EmptySearch(t *testing.T) {
	chunks, err := NewMemoryIndex(2).Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestMemoryIndex_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, idx.Upsert(ctx, []Record{{Text: "x", Embedding: []float32{1, 1}}}))
		}()
		go func() {
			defer wg.Done()
			_, err := idx.Search(ctx, []float32{1, 0}, 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, idx.Len())
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{2, 0}, []float32{5, 0}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, float32(0), cosineSimilarity([]float32{1}, []float32{1, 0}))
}
