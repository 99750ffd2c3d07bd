package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/ingestion"
	"github.com/poiesic/ragstream/query"
	"github.com/poiesic/ragstream/textsplit"
	"gopkg.in/yaml.v3"
)

// Backends for the queue and the vector store.
const (
	BackendBadger = "badger"
	BackendMemory = "memory"
	BackendQdrant = "qdrant"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

// ChunkingConfig configures how documents are split into chunks.
type ChunkingConfig struct {
	Size    int `yaml:"chunk_size"`
	Overlap int `yaml:"chunk_overlap"`
}

// EmbeddingConfig selects and configures the embedder.
type EmbeddingConfig struct {
	Backend   string `yaml:"backend"`
	Host      string `yaml:"host"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	Dimension int    `yaml:"dimension"`
}

// LLMConfig selects and configures the chat backend.
type LLMConfig struct {
	Backend string `yaml:"backend"`
	Model   string `yaml:"model"`
	Host    string `yaml:"host"`
	APIKey  string `yaml:"api_key"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// StoreConfig selects the vector store.
type StoreConfig struct {
	Backend string       `yaml:"backend"`
	Qdrant  QdrantConfig `yaml:"qdrant"`
}

// IngestionConfig configures the worker pool.
type IngestionConfig struct {
	Workers int           `yaml:"workers"`
	Backoff time.Duration `yaml:"backoff"`
}

// Config is the root configuration.
type Config struct {
	DataDir     string          `yaml:"data_dir"`
	CatalogPath string          `yaml:"catalog_path"`
	Listen      string          `yaml:"listen"`
	TopK        int             `yaml:"top_k"`
	Chunking    ChunkingConfig  `yaml:"chunking"`
	Embedding   EmbeddingConfig `yaml:"embedding"`
	LLM         LLMConfig       `yaml:"llm"`
	Queue       string          `yaml:"queue"`
	Catalog     string          `yaml:"catalog"`
	Store       StoreConfig     `yaml:"store"`
	Ingestion   IngestionConfig `yaml:"ingestion"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		DataDir:  "./data",
		Listen:   "127.0.0.1:8080",
		TopK:     query.DefaultTopK,
		Chunking: ChunkingConfig{Size: textsplit.DefaultChunkSize, Overlap: textsplit.DefaultChunkOverlap},
		Embedding: EmbeddingConfig{
			Backend:   aiDefaults.EmbeddingBackend,
			Host:      aiDefaults.EmbeddingHost,
			Model:     aiDefaults.EmbeddingModel,
			APIKey:    aiDefaults.EmbeddingAPIKey,
			Dimension: aiDefaults.Dimension,
		},
		LLM:     LLMConfig{Backend: aiDefaults.LLMBackend},
		Queue:   BackendBadger,
		Catalog: BackendSQLite,
		Store:   StoreConfig{Backend: BackendBadger},
		Ingestion: IngestionConfig{
			Workers: 2,
			Backoff: ingestion.DefaultBackoff,
		},
	}
}

// Load reads a config from path. If the file does not exist, returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	// Unmarshalling over the defaults keeps them for absent fields.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero values left by an explicit empty field.
func (c *Config) applyDefaults() {
	def := Default()
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.TopK == 0 {
		c.TopK = def.TopK
	}
	if c.Chunking.Size == 0 {
		c.Chunking.Size = def.Chunking.Size
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = def.Embedding.Dimension
	}
	if c.Queue == "" {
		c.Queue = def.Queue
	}
	if c.Catalog == "" {
		c.Catalog = def.Catalog
	}
	if c.Store.Backend == "" {
		c.Store.Backend = def.Store.Backend
	}
	if c.Ingestion.Workers == 0 {
		c.Ingestion.Workers = def.Ingestion.Workers
	}
}

// BadgerDir is the directory holding the badger database.
func (c *Config) BadgerDir() string {
	return filepath.Join(c.DataDir, "badger")
}

// CatalogFile is the SQLite catalog path.
func (c *Config) CatalogFile() string {
	if c.CatalogPath != "" {
		return c.CatalogPath
	}
	return filepath.Join(c.DataDir, "catalog.db")
}

// AI converts the embedding and LLM sections to an ai.Config.
func (c *Config) AI() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingBackend(c.Embedding.Backend),
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithEmbeddingAPIKey(c.Embedding.APIKey),
		ai.WithDimension(c.Embedding.Dimension),
		ai.WithLLMBackend(c.LLM.Backend),
		ai.WithLLMModel(c.LLM.Model),
		ai.WithLLMHost(c.LLM.Host),
		ai.WithLLMAPIKey(c.LLM.APIKey),
	)
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	var errs []error
	if c.Chunking.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be positive, got %d", c.Chunking.Size))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.Overlap))
	}
	if c.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top_k must be positive, got %d", c.TopK))
	}
	if c.Ingestion.Workers <= 0 {
		errs = append(errs, fmt.Errorf("ingestion.workers must be positive, got %d", c.Ingestion.Workers))
	}
	if !slices.Contains([]string{BackendBadger, BackendMemory}, c.Queue) {
		errs = append(errs, fmt.Errorf("unknown queue backend %q", c.Queue))
	}
	if !slices.Contains([]string{BackendSQLite, BackendMemory, BackendNone}, c.Catalog) {
		errs = append(errs, fmt.Errorf("unknown catalog backend %q", c.Catalog))
	}
	switch c.Store.Backend {
	case BackendBadger, BackendMemory:
	case BackendQdrant:
		if c.Store.Qdrant.URL == "" {
			errs = append(errs, errors.New("store.qdrant.url is required for the qdrant backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if err := c.AI().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
