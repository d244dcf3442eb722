package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported vector index backends.
const (
	BackendQdrant = "qdrant"
	BackendMilvus = "milvus"
	BackendMemory = "memory"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// OpenAIConfig holds credentials and model names for the embedding and chat services.
type OpenAIConfig struct {
	APIKey             string  `yaml:"api_key"`
	BaseURL            string  `yaml:"base_url"`
	ChatModel          string  `yaml:"chat_model"`
	Temperature        float32 `yaml:"temperature"`
	MaxTokens          int     `yaml:"max_tokens"`
	EmbeddingModel     string  `yaml:"embedding_model"`
	EmbeddingDimension int     `yaml:"embedding_dimension"`
}

// IndexConfig selects the vector index backend and the shared collection.
type IndexConfig struct {
	Backend    string `yaml:"backend"`
	Collection string `yaml:"collection"`
}

type QdrantConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

type MilvusConfig struct {
	Address string `yaml:"address"`
}

// RAGConfig tunes retrieval and prompt assembly.
type RAGConfig struct {
	TopK            int           `yaml:"top_k"`
	MaxContextChars int           `yaml:"max_context_chars"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	BatchSize       int           `yaml:"batch_size"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Debug bool `yaml:"debug"`
}

// Config is the root application configuration.
type Config struct {
	Server       ServerConfig  `yaml:"server"`
	OpenAI       OpenAIConfig  `yaml:"openai"`
	Index        IndexConfig   `yaml:"index"`
	Qdrant       QdrantConfig  `yaml:"qdrant"`
	Milvus       MilvusConfig  `yaml:"milvus"`
	RAG          RAGConfig     `yaml:"rag"`
	PersonasFile string        `yaml:"personas_file"`
	Catalog      CatalogConfig `yaml:"catalog"`
	Log          LogConfig     `yaml:"log"`
}

// Default returns the configuration used when no file or environment overrides are present.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":3000"},
		OpenAI: OpenAIConfig{
			ChatModel:          "gpt-4o-mini",
			Temperature:        0.2,
			EmbeddingModel:     "text-embedding-3-large",
			EmbeddingDimension: 3072,
		},
		Index: IndexConfig{
			Backend:    BackendQdrant,
			Collection: "ragify-chat-collection",
		},
		Qdrant: QdrantConfig{URL: "http://localhost:6334"},
		Milvus: MilvusConfig{Address: "localhost:19530"},
		RAG: RAGConfig{
			TopK:            3,
			MaxContextChars: 24000,
			BatchSize:       16,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path
// and finally the environment. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Addr, "RAGIFY_ADDR")
	setString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.OpenAI.ChatModel, "RAGIFY_CHAT_MODEL")
	setString(&cfg.OpenAI.EmbeddingModel, "RAGIFY_EMBEDDING_MODEL")
	setString(&cfg.Index.Backend, "RAGIFY_INDEX")
	setString(&cfg.Index.Collection, "RAGIFY_COLLECTION")
	setString(&cfg.Qdrant.URL, "QDRANT_URL")
	setString(&cfg.Qdrant.APIKey, "QDRANT_API_KEY")
	setString(&cfg.Milvus.Address, "MILVUS_ADDRESS")
	setString(&cfg.PersonasFile, "RAGIFY_PERSONAS")
	setString(&cfg.Catalog.Path, "RAGIFY_CATALOG")

	if v := os.Getenv("RAGIFY_TOP_K"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: RAGIFY_TOP_K: %v", ErrInvalidConfig, err)
		}
		cfg.RAG.TopK = n
	}
	if v := os.Getenv("RAGIFY_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: RAGIFY_DEBUG: %v", ErrInvalidConfig, err)
		}
		cfg.Log.Debug = debug
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// applyDefaults fills fields a partial YAML file left empty.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = def.OpenAI.ChatModel
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = def.OpenAI.EmbeddingModel
	}
	if cfg.OpenAI.EmbeddingDimension == 0 {
		cfg.OpenAI.EmbeddingDimension = def.OpenAI.EmbeddingDimension
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = def.Index.Backend
	}
	cfg.Index.Backend = strings.ToLower(cfg.Index.Backend)
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = def.Index.Collection
	}
	if cfg.Qdrant.URL == "" {
		cfg.Qdrant.URL = def.Qdrant.URL
	}
	if cfg.Milvus.Address == "" {
		cfg.Milvus.Address = def.Milvus.Address
	}
	if cfg.RAG.BatchSize <= 0 {
		cfg.RAG.BatchSize = def.RAG.BatchSize
	}
}

// Validate reports configuration that would fail at the first request.
func (c Config) Validate() error {
	switch c.Index.Backend {
	case BackendQdrant, BackendMilvus, BackendMemory:
	default:
		return fmt.Errorf("%w: unknown index backend %q", ErrInvalidConfig, c.Index.Backend)
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("%w: missing API key (set OPENAI_API_KEY or openai.api_key)", ErrInvalidConfig)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("%w: rag.top_k must be positive, got %d", ErrInvalidConfig, c.RAG.TopK)
	}
	if c.RAG.MaxContextChars < 0 {
		return fmt.Errorf("%w: rag.max_context_chars must not be negative", ErrInvalidConfig)
	}
	if c.RAG.RequestTimeout < 0 {
		return fmt.Errorf("%w: rag.request_timeout must not be negative", ErrInvalidConfig)
	}
	if c.OpenAI.EmbeddingDimension <= 0 {
		return fmt.Errorf("%w: openai.embedding_dimension must be positive", ErrInvalidConfig)
	}
	return nil
}
