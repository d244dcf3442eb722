package rag

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockEmbedder is a testify mock of Embedder.
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	args := m.Called(ctx, texts)
	records, _ := args.Get(0).([]EmbeddingRecord)
	return records, args.Error(1)
}

func (m *MockEmbedder) GetModel() string {
	return "mock-embedding"
}

func (m *MockEmbedder) GetDimension() int {
	return 3
}

// MockIndex is a testify mock of VectorIndex.
type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) Upsert(ctx context.Context, records []Record) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockIndex) Search(ctx context.Context, queryVector []float32, topK int) ([]RetrievedChunk, error) {
	args := m.Called(ctx, queryVector, topK)
	chunks, _ := args.Get(0).([]RetrievedChunk)
	return chunks, args.Error(1)
}

func (m *MockIndex) Close() error {
	args := m.Called()
	return args.Error(0)
}

// EmbedEach builds deterministic 3-dimensional embeddings for texts, in order.
func EmbedEach(texts ...string) []EmbeddingRecord {
	records := make([]EmbeddingRecord, len(texts))
	for i, text := range texts {
		records[i] = EmbeddingRecord{
			Text:      text,
			Embedding: []float32{float32(len(text)), float32(i), 1},
			Index:     i,
			Model:     "mock-embedding",
		}
	}
	return records
}
