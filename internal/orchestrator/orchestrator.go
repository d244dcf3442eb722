package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Yates-Labs/ragify/internal/catalog"
	"github.com/Yates-Labs/ragify/internal/ingest/loader"
	"github.com/Yates-Labs/ragify/internal/rag"
)

var (
	ErrEmptyText    = errors.New("text content is required")
	ErrInvalidURL   = errors.New("invalid url")
	ErrFetchFailed  = errors.New("failed to fetch url")
	ErrIngestFailed = errors.New("ingestion failed")
)

const (
	maxFetchSize = 5 << 20
	fetchTimeout = 20 * time.Second
)

// SourceRecorder receives a record of every successful ingestion.
type SourceRecorder interface {
	Add(ctx context.Context, s catalog.Source) error
}

// IngestResult describes one ingested source.
type IngestResult struct {
	SourceID string   `json:"source_id"`
	Kind     string   `json:"kind"`
	Title    string   `json:"title"`
	Content  []string `json:"content"`
}

// Ingestor turns documents into indexed chunks.
type Ingestor struct {
	embedder   rag.Embedder
	index      rag.VectorIndex
	recorder   SourceRecorder
	opts       rag.IndexOptions
	httpClient *http.Client
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithHTTPClient replaces the client used to fetch URL sources. The default
// client only connects to public addresses.
func WithHTTPClient(c *http.Client) IngestorOption {
	return func(i *Ingestor) {
		i.httpClient = c
	}
}

// NewIngestor creates an ingestion pipeline. recorder may be nil.
func NewIngestor(embedder rag.Embedder, index rag.VectorIndex, recorder SourceRecorder, opts rag.IndexOptions, options ...IngestorOption) (*Ingestor, error) {
	if embedder == nil || index == nil {
		return nil, fmt.Errorf("embedder and index cannot be nil")
	}
	if opts.BatchSize <= 0 {
		opts = rag.DefaultIndexOptions()
	}
	ing := &Ingestor{
		embedder:   embedder,
		index:      index,
		recorder:   recorder,
		opts:       opts,
		httpClient: newFetchClient(),
	}
	for _, opt := range options {
		opt(ing)
	}
	return ing, nil
}

// Ingest extracts, embeds and indexes an uploaded file. Unknown extensions
// fail with loader.ErrUnsupportedType before anything is embedded.
func (i *Ingestor) Ingest(ctx context.Context, filename string, data []byte) (*IngestResult, error) {
	name := filepath.Base(filename)
	if _, err := loader.ForFile(name); err != nil {
		return nil, err
	}

	chunks, err := loader.Load(ctx, name, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIngestFailed, err)
	}
	log.Printf("[Ingest] %s: extracted %d chunks", name, len(chunks))

	return i.store(ctx, catalog.KindFile, name, chunks)
}

// IngestText indexes pasted text as a single chunk.
func (i *Ingestor) IngestText(ctx context.Context, title, text string) (*IngestResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	title = firstNonEmpty(title, "Untitled text")

	chunks, err := loader.TextLoader{}.Load(ctx, title, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIngestFailed, err)
	}
	return i.store(ctx, catalog.KindText, title, chunks)
}

// IngestURL fetches a web page and indexes its visible text. Bodies beyond
// 5 MiB are truncated.
func (i *Ingestor) IngestURL(ctx context.Context, rawURL, title string) (*IngestResult, error) {
	u, err := parseSourceURL(rawURL)
	if err != nil {
		return nil, err
	}

	body, contentType, err := i.fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}
	log.Printf("[Ingest] fetched %s (%d bytes, %s)", u, len(body), contentType)

	var pageLoader loader.Loader = loader.HTMLLoader{}
	if isPlainText(contentType) {
		pageLoader = loader.TextLoader{}
	}
	chunks, err := pageLoader.Load(ctx, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIngestFailed, err)
	}
	if len(chunks) == 0 || strings.TrimSpace(chunks[0].Text) == "" {
		return nil, fmt.Errorf("%w: %s has no visible text", ErrIngestFailed, u)
	}

	pageTitle, _ := chunks[0].Metadata[loader.MetaTitle].(string)
	title = firstNonEmpty(title, pageTitle, titleFromURL(u))
	for _, c := range chunks {
		c.Metadata[loader.MetaTitle] = title
	}
	return i.store(ctx, catalog.KindURL, title, chunks)
}

// store embeds and upserts chunks, then records the source.
func (i *Ingestor) store(ctx context.Context, kind, title string, chunks []rag.Chunk) (*IngestResult, error) {
	sourceID := uuid.NewString()
	content := make([]string, len(chunks))
	for n, c := range chunks {
		if c.Metadata == nil {
			c.Metadata = map[string]any{}
			chunks[n] = c
		}
		c.Metadata["source_id"] = sourceID
		content[n] = c.Text
	}

	written, err := rag.IndexChunks(ctx, chunks, i.embedder, i.index, i.opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIngestFailed, err)
	}
	log.Printf("[Ingest] %s %q: indexed %d chunks (source %s)", kind, title, written, sourceID)

	if i.recorder != nil && written > 0 {
		err := i.recorder.Add(ctx, catalog.Source{
			ID:         sourceID,
			Kind:       kind,
			Title:      title,
			ChunkCount: written,
		})
		if err != nil {
			// the content is already searchable; only the listing misses it
			log.Printf("[Ingest] failed to record source %s: %v", sourceID, err)
		}
	}

	return &IngestResult{
		SourceID: sourceID,
		Kind:     kind,
		Title:    title,
		Content:  content,
	}, nil
}
