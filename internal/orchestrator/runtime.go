package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Yates-Labs/ragify/internal/catalog"
	"github.com/Yates-Labs/ragify/internal/config"
	"github.com/Yates-Labs/ragify/internal/narrative"
	"github.com/Yates-Labs/ragify/internal/persona"
	"github.com/Yates-Labs/ragify/internal/rag"
)

// Runtime holds every long-lived component built from the configuration.
type Runtime struct {
	Config   config.Config
	Personas *persona.Table
	Index    rag.VectorIndex
	Catalog  *catalog.Catalog // nil when the catalog is disabled
	Pipeline *Pipeline
	Ingestor *Ingestor
}

// Open validates cfg and builds the runtime.
func Open(ctx context.Context, cfg config.Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	personas, err := LoadPersonas(cfg)
	if err != nil {
		return nil, err
	}

	embedder, err := rag.NewOpenAIEmbedder(rag.EmbedderConfig{
		APIKey:    cfg.OpenAI.APIKey,
		BaseURL:   cfg.OpenAI.BaseURL,
		Model:     cfg.OpenAI.EmbeddingModel,
		Dimension: cfg.OpenAI.EmbeddingDimension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	llmConfig := narrative.LLMConfig{
		Model:       cfg.OpenAI.ChatModel,
		Temperature: cfg.OpenAI.Temperature,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
	}
	completer, err := narrative.NewOpenAICompleter(llmConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create completer: %w", err)
	}

	index, err := OpenIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Config: cfg, Personas: personas, Index: index}

	if cfg.Catalog.Path != "" {
		rt.Catalog, err = catalog.Open(cfg.Catalog.Path)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
	}

	rt.Pipeline, err = NewPipeline(personas, embedder, index, completer, llmConfig, RAGConfig{
		TopK:            cfg.RAG.TopK,
		MaxContextChars: cfg.RAG.MaxContextChars,
		RequestTimeout:  cfg.RAG.RequestTimeout,
		Debug:           cfg.Log.Debug,
	})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	var recorder SourceRecorder
	if rt.Catalog != nil {
		recorder = rt.Catalog
	}
	rt.Ingestor, err = NewIngestor(embedder, index, recorder, rag.IndexOptions{BatchSize: cfg.RAG.BatchSize})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	log.Printf("[RAG Pipeline] ready: index=%s collection=%s chat=%s embeddings=%s personas=%d",
		cfg.Index.Backend, cfg.Index.Collection, cfg.OpenAI.ChatModel, cfg.OpenAI.EmbeddingModel, personas.Len())
	return rt, nil
}

// OpenIndex connects the configured vector index backend.
func OpenIndex(ctx context.Context, cfg config.Config) (rag.VectorIndex, error) {
	dim := cfg.OpenAI.EmbeddingDimension
	switch cfg.Index.Backend {
	case config.BackendQdrant:
		return rag.NewQdrantIndex(rag.QdrantConfig{
			URL:            cfg.Qdrant.URL,
			APIKey:         cfg.Qdrant.APIKey,
			CollectionName: cfg.Index.Collection,
			Dimension:      dim,
		})
	case config.BackendMilvus:
		return rag.NewMilvusIndex(ctx, rag.DefaultMilvusConfig(cfg.Milvus.Address, cfg.Index.Collection, dim))
	case config.BackendMemory:
		return rag.NewMemoryIndex(dim), nil
	default:
		return nil, fmt.Errorf("%w: unknown index backend %q", config.ErrInvalidConfig, cfg.Index.Backend)
	}
}

// LoadPersonas returns the table from cfg.PersonasFile, or the built-in table.
func LoadPersonas(cfg config.Config) (*persona.Table, error) {
	if cfg.PersonasFile == "" {
		return persona.Default(), nil
	}
	table, err := persona.Load(cfg.PersonasFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load personas: %w", err)
	}
	return table, nil
}

// Close releases the index connection and the catalog.
func (r *Runtime) Close() error {
	var errs []error
	if r.Index != nil {
		errs = append(errs, r.Index.Close())
	}
	if r.Catalog != nil {
		errs = append(errs, r.Catalog.Close())
	}
	return errors.Join(errs...)
}
