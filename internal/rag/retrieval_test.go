package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewRetriever_NilComponents(t *testing.T) {
	_, err := NewRetriever(nil, &MockIndex{})
	assert.ErrorIs(t, err, ErrNilComponent)

	_, err = NewRetriever(&MockEmbedder{}, nil)
	assert.ErrorIs(t, err, ErrNilComponent)
}

func TestRetrieveContextForQuery_ReturnsIndexOrder(t *testing.T) {
	ctx := context.Background()
	embedder := &MockEmbedder{}
	index := &MockIndex{}

	query := "What is X?"
	records := EmbedEach(query)
	chunks := []RetrievedChunk{
		{Text: "X is a thing", Score: 0.9},
		{Text: "X is a thing", Score: 0.9},
		{Text: "unrelated", Score: 0.01},
	}

	embedder.On("Embed", ctx, []string{query}).Return(records, nil).Once()
	index.On("Search", ctx, records[0].Embedding, 3).Return(chunks, nil).Once()

	retriever, err := NewRetriever(embedder, index)
	require.NoError(t, err)

	got, err := retriever.RetrieveContextForQuery(ctx, query, 3)
	require.NoError(t, err)

	// duplicates and low scores pass through untouched
	assert.Equal(t, chunks, got)
	embedder.AssertExpectations(t)
	index.AssertExpectations(t)
}

func TestRetrieveContextForQuery_Validation(t *testing.T) {
	embedder := &MockEmbedder{}
	index := &MockIndex{}
	retriever, err := NewRetriever(embedder, index)
	require.NoError(t, err)

	_, err = retriever.RetrieveContextForQuery(context.Background(), "", 3)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = retriever.RetrieveContextForQuery(context.Background(), "q", 0)
	assert.ErrorIs(t, err, ErrInvalidTopK)

	embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
	index.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestRetrieveContextForQuery_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("embed failure", func(t *testing.T) {
		embedder := &MockEmbedder{}
		index := &MockIndex{}
		embedder.On("Embed", ctx, []string{"q"}).Return(nil, boom)

		retriever, _ := NewRetriever(embedder, index)
		_, err := retriever.RetrieveContextForQuery(ctx, "q", 3)
		assert.ErrorIs(t, err, boom)
		index.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no embedding", func(t *testing.T) {
		embedder := &MockEmbedder{}
		embedder.On("Embed", ctx, []string{"q"}).Return([]EmbeddingRecord{}, nil)

		retriever, _ := NewRetriever(embedder, &MockIndex{})
		_, err := retriever.RetrieveContextForQuery(ctx, "q", 3)
		assert.ErrorIs(t, err, ErrNoEmbedding)
	})

	t.Run("search failure", func(t *testing.T) {
		embedder := &MockEmbedder{}
		index := &MockIndex{}
		embedder.On("Embed", ctx, []string{"q"}).Return(EmbedEach("q"), nil)
		index.On("Search", ctx, mock.Anything, 3).Return(nil, boom)

		retriever, _ := NewRetriever(embedder, index)
		_, err := retriever.RetrieveContextForQuery(ctx, "q", 3)
		assert.ErrorIs(t, err, boom)
	})
}
