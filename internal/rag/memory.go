package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryIndex is a process-local VectorIndex for development and tests.
// Contents are lost on restart.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	records   []Record
	positions map[string]int // record ID -> index into records
}

func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		positions: make(map[string]int),
	}
}

// Upsert stores records, replacing any record with the same ID.
func (s *MemoryIndex) Upsert(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if s.dimension > 0 && len(r.Embedding) != s.dimension {
			return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, s.dimension, len(r.Embedding))
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if pos, ok := s.positions[r.ID]; ok {
			s.records[pos] = r
			continue
		}
		s.positions[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}
	return nil
}

// Search ranks every stored record by cosine similarity. Ties keep insertion order.
func (s *MemoryIndex) Search(ctx context.Context, queryVector []float32, topK int) ([]RetrievedChunk, error) {
	if s.dimension > 0 && len(queryVector) != s.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, s.dimension, len(queryVector))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]RetrievedChunk, len(s.records))
	for i, r := range s.records {
		results[i] = RetrievedChunk{
			ID:       r.ID,
			Text:     r.Text,
			Metadata: r.Metadata,
			Score:    cosineSimilarity(queryVector, r.Embedding),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK >= 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *MemoryIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryIndex) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
