package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	milvusIDField       = "chunk_id"
	milvusTextField     = "text"
	milvusMetadataField = "metadata"
	milvusVectorField   = "embedding"
	milvusPartField     = "part"
	milvusPartsField    = "parts"

	// milvusMaxVarChar is the largest max_length Milvus accepts for a VarChar, in bytes.
	milvusMaxVarChar = 65535
)

// MilvusConfig holds configuration for Milvus connection and collection
type MilvusConfig struct {
	Address        string // Milvus server address (e.g., "localhost:19530")
	CollectionName string
	Dimension      int // Vector dimension (e.g., 3072 for text-embedding-3-large)

	// HNSW index parameters
	M              int // HNSW M parameter (default: 16)
	EfConstruction int // HNSW efConstruction (default: 256)
	Ef             int // search-time ef (default: 64)
}

// DefaultMilvusConfig returns the HNSW defaults for the given collection.
func DefaultMilvusConfig(address, collection string, dimension int) MilvusConfig {
	return MilvusConfig{
		Address:        address,
		CollectionName: collection,
		Dimension:      dimension,
		M:              16,
		EfConstruction: 256,
		Ef:             64,
	}
}

// MilvusIndex implements VectorIndex on a Milvus collection. Chunk metadata is
// kept as a JSON-encoded varchar so arbitrary loader metadata round-trips.
// Text longer than one VarChar is stored as numbered part rows sharing the
// chunk's id and vector; only part 0 is searched and the rest are stitched
// back on by Search.
type MilvusIndex struct {
	client client.Client
	config MilvusConfig

	mu      sync.Mutex
	ensured bool
}

// NewMilvusIndex connects to Milvus and ensures the collection exists.
func NewMilvusIndex(ctx context.Context, config MilvusConfig) (*MilvusIndex, error) {
	if config.Dimension <= 0 {
		return nil, ErrInvalidDimension
	}

	c, err := client.NewGrpcClient(ctx, config.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: milvus %s: %v", ErrConnectionFailed, config.Address, err)
	}

	idx := &MilvusIndex{client: c, config: config}
	if err := idx.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return idx, nil
}

// ensureCollection creates the collection, its HNSW index and loads it.
func (m *MilvusIndex) ensureCollection(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ensured {
		return nil
	}

	has, err := m.client.HasCollection(ctx, m.config.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !has {
		schema := &entity.Schema{
			CollectionName: m.config.CollectionName,
			AutoID:         true,
			Fields: []*entity.Field{
				{
					Name:       "id",
					DataType:   entity.FieldTypeInt64,
					PrimaryKey: true,
					AutoID:     true,
				},
				{
					Name:       milvusIDField,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "64"},
				},
				{
					Name:     milvusPartField,
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:     milvusPartsField,
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:       milvusTextField,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": strconv.Itoa(milvusMaxVarChar)},
				},
				{
					Name:       milvusMetadataField,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": strconv.Itoa(milvusMaxVarChar)},
				},
				{
					Name:       milvusVectorField,
					DataType:   entity.FieldTypeFloatVector,
					TypeParams: map[string]string{"dim": strconv.Itoa(m.config.Dimension)},
				},
			},
		}

		if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx, err := entity.NewIndexHNSW(entity.COSINE, m.config.M, m.config.EfConstruction)
		if err != nil {
			return fmt.Errorf("failed to create index config: %w", err)
		}
		if err := m.client.CreateIndex(ctx, m.config.CollectionName, milvusVectorField, idx, false); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := m.client.LoadCollection(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	m.ensured = true
	return nil
}

// Upsert inserts records and flushes them so they are immediately searchable.
func (m *MilvusIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, record := range records {
		if len(record.Embedding) != m.config.Dimension {
			return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(record.Embedding))
		}
	}

	rows, err := splitRecords(records, milvusMaxVarChar)
	if err != nil {
		return err
	}
	if err := m.ensureCollection(ctx); err != nil {
		return err
	}

	ids := make([]string, len(rows))
	parts := make([]int64, len(rows))
	totals := make([]int64, len(rows))
	texts := make([]string, len(rows))
	metas := make([]string, len(rows))
	vectors := make([][]float32, len(rows))
	for i, row := range rows {
		ids[i] = row.chunkID
		parts[i] = row.part
		totals[i] = row.parts
		texts[i] = row.text
		metas[i] = row.metadata
		vectors[i] = row.vector
	}

	columns := []entity.Column{
		entity.NewColumnVarChar(milvusIDField, ids),
		entity.NewColumnInt64(milvusPartField, parts),
		entity.NewColumnInt64(milvusPartsField, totals),
		entity.NewColumnVarChar(milvusTextField, texts),
		entity.NewColumnVarChar(milvusMetadataField, metas),
		entity.NewColumnFloatVector(milvusVectorField, m.config.Dimension, vectors),
	}

	if _, err := m.client.Insert(ctx, m.config.CollectionName, "", columns...); err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}

	// Flush to ensure data is persisted
	if err := m.client.Flush(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to flush data: %w", err)
	}

	return nil
}

// Search performs top-K cosine similarity search over the whole collection.
func (m *MilvusIndex) Search(ctx context.Context, queryVector []float32, topK int) ([]RetrievedChunk, error) {
	if len(queryVector) != m.config.Dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(queryVector))
	}

	sp, err := entity.NewIndexHNSWSearchParam(m.config.Ef)
	if err != nil {
		return nil, fmt.Errorf("failed to create search params: %w", err)
	}

	results, err := m.client.Search(
		ctx,
		m.config.CollectionName,
		nil, // partition names
		milvusPartField+" == 0",
		[]string{milvusIDField, milvusPartsField, milvusTextField, milvusMetadataField},
		[]entity.Vector{entity.FloatVector(queryVector)},
		milvusVectorField,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	if len(results) == 0 {
		return []RetrievedChunk{}, nil
	}

	chunks := make([]RetrievedChunk, results[0].ResultCount)
	for i := range chunks {
		chunks[i].Score = results[0].Scores[i]
	}

	for _, field := range results[0].Fields {
		col, ok := field.(*entity.ColumnVarChar)
		if !ok {
			continue
		}
		data := col.Data()
		for i := range chunks {
			switch field.Name() {
			case milvusIDField:
				chunks[i].ID = data[i]
			case milvusTextField:
				chunks[i].Text = data[i]
			case milvusMetadataField:
				meta, err := decodeMetadata(data[i])
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
				}
				chunks[i].Metadata = meta
			}
		}
	}

	var split []string
	for _, field := range results[0].Fields {
		if col, ok := field.(*entity.ColumnInt64); ok && field.Name() == milvusPartsField {
			for i, n := range col.Data() {
				if n > 1 && i < len(chunks) {
					split = append(split, chunks[i].ID)
				}
			}
		}
	}
	if len(split) == 0 {
		return chunks, nil
	}

	tails, err := m.queryTails(ctx, split)
	if err != nil {
		return nil, err
	}
	return joinParts(chunks, tails), nil
}

// queryTails fetches the part rows after part 0 for the given chunk ids.
func (m *MilvusIndex) queryTails(ctx context.Context, chunkIDs []string) ([]milvusRow, error) {
	quoted, err := json.Marshal(chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	expr := fmt.Sprintf("%s in %s && %s > 0", milvusIDField, quoted, milvusPartField)

	rs, err := m.client.Query(ctx, m.config.CollectionName, nil, expr,
		[]string{milvusIDField, milvusPartField, milvusTextField})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	idCol, ok1 := rs.GetColumn(milvusIDField).(*entity.ColumnVarChar)
	partCol, ok2 := rs.GetColumn(milvusPartField).(*entity.ColumnInt64)
	textCol, ok3 := rs.GetColumn(milvusTextField).(*entity.ColumnVarChar)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("%w: incomplete part rows", ErrSearchFailed)
	}

	ids, parts, texts := idCol.Data(), partCol.Data(), textCol.Data()
	tails := make([]milvusRow, len(ids))
	for i := range ids {
		tails[i] = milvusRow{chunkID: ids[i], part: parts[i], text: texts[i]}
	}
	return tails, nil
}

// milvusRow is one stored row of a possibly split chunk.
type milvusRow struct {
	chunkID  string
	part     int64
	parts    int64
	text     string
	metadata string
	vector   []float32
}

// splitRecords turns records into rows whose text fits limit bytes. Metadata
// is stored once, on part 0, and must fit a single VarChar.
func splitRecords(records []Record, limit int) ([]milvusRow, error) {
	rows := make([]milvusRow, 0, len(records))
	for _, record := range records {
		meta, err := encodeMetadata(record.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInsertFailed, err)
		}
		if len(meta) > limit {
			return nil, fmt.Errorf("%w: chunk %s metadata is %d bytes, limit is %d",
				ErrInsertFailed, record.ID, len(meta), limit)
		}

		pieces := splitText(record.Text, limit)
		for i, piece := range pieces {
			row := milvusRow{
				chunkID: record.ID,
				part:    int64(i),
				parts:   int64(len(pieces)),
				text:    piece,
				vector:  record.Embedding,
			}
			if i == 0 {
				row.metadata = meta
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// splitText cuts text into pieces of at most limit bytes without splitting a rune.
func splitText(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var pieces []string
	for len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		pieces = append(pieces, text[:cut])
		text = text[cut:]
	}
	return append(pieces, text)
}

// joinParts appends tail rows, in part order, to the text of their chunk.
func joinParts(chunks []RetrievedChunk, tails []milvusRow) []RetrievedChunk {
	sort.SliceStable(tails, func(i, j int) bool {
		if tails[i].chunkID != tails[j].chunkID {
			return tails[i].chunkID < tails[j].chunkID
		}
		return tails[i].part < tails[j].part
	})

	byID := make(map[string][]string)
	for _, t := range tails {
		byID[t.chunkID] = append(byID[t.chunkID], t.text)
	}
	for i := range chunks {
		if rest, ok := byID[chunks[i].ID]; ok {
			chunks[i].Text += strings.Join(rest, "")
		}
	}
	return chunks
}

// Close releases resources and closes the Milvus connection
func (m *MilvusIndex) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

func encodeMetadata(meta map[string]any) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(raw string) (map[string]any, error) {
	meta := map[string]any{}
	if raw == "" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return meta, nil
}
