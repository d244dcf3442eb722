package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	qdrantTextKey     = "text"
	qdrantMetadataKey = "metadata"
	defaultQdrantPort = 6334
	qdrantRESTPort    = 6333
)

// QdrantConfig holds configuration for the Qdrant gRPC connection and collection.
type QdrantConfig struct {
	URL            string // e.g. "http://localhost:6334"; https enables TLS
	APIKey         string
	CollectionName string
	Dimension      int
}

// QdrantIndex implements VectorIndex on a Qdrant collection using cosine distance.
type QdrantIndex struct {
	client *qdrant.Client
	config QdrantConfig

	mu      sync.Mutex
	ensured bool
}

// NewQdrantIndex creates a Qdrant client. The collection is created lazily on first use.
func NewQdrantIndex(config QdrantConfig) (*QdrantIndex, error) {
	if config.Dimension <= 0 {
		return nil, ErrInvalidDimension
	}

	clientConfig, err := parseQdrantURL(config.URL)
	if err != nil {
		return nil, err
	}
	clientConfig.APIKey = config.APIKey
	if msg := portWarning(clientConfig.Port); msg != "" {
		log.Printf("[Qdrant] %s", msg)
	}

	c, err := qdrant.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant %s: %v", ErrConnectionFailed, config.URL, err)
	}

	return &QdrantIndex{client: c, config: config}, nil
}

func parseQdrantURL(raw string) (*qdrant.Config, error) {
	if raw == "" {
		return &qdrant.Config{Host: "localhost", Port: defaultQdrantPort}, nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: invalid qdrant url %q", ErrConnectionFailed, raw)
	}

	port := defaultQdrantPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid qdrant port %q", ErrConnectionFailed, p)
		}
	}

	return &qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		UseTLS: u.Scheme == "https",
	}, nil
}

// portWarning flags the REST port, which the gRPC client cannot talk to.
func portWarning(port int) string {
	if port != qdrantRESTPort {
		return ""
	}
	return fmt.Sprintf("port %d is the Qdrant REST API; the client speaks gRPC, usually on port %d",
		qdrantRESTPort, defaultQdrantPort)
}

func (s *QdrantIndex) ensureCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, s.config.CollectionName)
	if err != nil {
		return fmt.Errorf("%w: check collection: %v", ErrConnectionFailed, err)
	}
	if !exists {
		if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.config.CollectionName,
			VectorsConfig: &qdrant.VectorsConfig{
				Config: &qdrant.VectorsConfig_Params{
					Params: &qdrant.VectorParams{
						Size:     uint64(s.config.Dimension),
						Distance: qdrant.Distance_Cosine,
					},
				},
			},
		}); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}

	s.ensured = true
	return nil
}

// Upsert stores each record as a point with payload {text, metadata}.
func (s *QdrantIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	pts := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		if len(r.Embedding) != s.config.Dimension {
			return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, s.config.Dimension, len(r.Embedding))
		}

		id := r.ID
		if id == "" {
			id = uuid.New().String()
		}

		meta, err := plainMetadata(r.Metadata)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInsertFailed, err)
		}
		payload, err := qdrant.TryValueMap(map[string]any{
			qdrantTextKey:     r.Text,
			qdrantMetadataKey: meta,
		})
		if err != nil {
			return fmt.Errorf("%w: payload: %v", ErrInsertFailed, err)
		}

		pts[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(id),
			Vectors: qdrant.NewVectors(r.Embedding...),
			Payload: payload,
		}
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.config.CollectionName,
		Wait:           qdrant.PtrOf(true),
		Points:         pts,
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}
	return nil
}

// Search queries the nearest points; Qdrant already returns them by descending score.
func (s *QdrantIndex) Search(ctx context.Context, queryVector []float32, topK int) ([]RetrievedChunk, error) {
	if len(queryVector) != s.config.Dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, s.config.Dimension, len(queryVector))
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}

	limit := uint64(topK)
	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.config.CollectionName,
		Limit:          &limit,
		Query:          qdrant.NewQuery(queryVector...),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	out := make([]RetrievedChunk, 0, len(resp))
	for _, r := range resp {
		chunk := RetrievedChunk{Score: r.Score, Metadata: map[string]any{}}

		if v, ok := r.Payload[qdrantTextKey]; ok {
			chunk.Text = v.GetStringValue()
		}
		if v, ok := r.Payload[qdrantMetadataKey]; ok {
			if meta, ok := convertQdrantValue(v).(map[string]any); ok {
				chunk.Metadata = meta
			}
		}

		if r.Id != nil {
			switch x := r.Id.PointIdOptions.(type) {
			case *qdrant.PointId_Uuid:
				chunk.ID = x.Uuid
			case *qdrant.PointId_Num:
				chunk.ID = strconv.FormatUint(x.Num, 10)
			}
		}

		out = append(out, chunk)
	}

	return out, nil
}

func (s *QdrantIndex) Close() error {
	return s.client.Close()
}

// plainMetadata reduces metadata to the JSON value types the payload builder accepts.
func plainMetadata(meta map[string]any) (map[string]any, error) {
	if len(meta) == 0 {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return out, nil
}

func convertQdrantValue(v *qdrant.Value) any {
	switch val := v.GetKind().(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_NullValue:
		return nil
	case *qdrant.Value_ListValue:
		out := make([]any, len(val.ListValue.GetValues()))
		for i, lv := range val.ListValue.GetValues() {
			out[i] = convertQdrantValue(lv)
		}
		return out
	case *qdrant.Value_StructValue:
		out := make(map[string]any)
		for k, nv := range val.StructValue.GetFields() {
			out[k] = convertQdrantValue(nv)
		}
		return out
	}
	return nil
}
