// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ragstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/ai/llm"
	"github.com/poiesic/ragstream/ai/mock"
	"github.com/poiesic/ragstream/ai/openai"
	"github.com/poiesic/ragstream/catalog"
	"github.com/poiesic/ragstream/catalog/sqlite"
	"github.com/poiesic/ragstream/config"
	"github.com/poiesic/ragstream/extract"
	"github.com/poiesic/ragstream/ingestion"
	"github.com/poiesic/ragstream/query"
	"github.com/poiesic/ragstream/queue"
	"github.com/poiesic/ragstream/reembed"
	"github.com/poiesic/ragstream/server"
	"github.com/poiesic/ragstream/storage"
	"github.com/poiesic/ragstream/storage/badger"
	"github.com/poiesic/ragstream/storage/memory"
	"github.com/poiesic/ragstream/storage/qdrant"
	"github.com/poiesic/ragstream/textsplit"
)

// App holds the collaborators shared by every component of a process.
// It is built once at startup and closed on shutdown.
type App struct {
	config   *config.Config
	backend  *badger.Backend
	store    storage.VectorStore
	queue    queue.Queue
	catalog  catalog.Catalog
	embedder ai.Embedder
	llm      ai.LLMProvider
	logger   *slog.Logger
}

// AppOption configures an App.
type AppOption func(*appOptions)

type appOptions struct {
	embedder ai.Embedder
	llm      ai.LLMProvider
	logger   *slog.Logger
	inMemory bool
}

// WithEmbedder overrides the embedder selected by the configuration.
func WithEmbedder(e ai.Embedder) AppOption {
	return func(o *appOptions) {
		o.embedder = e
	}
}

// WithLLM overrides the LLM backend selected by the configuration.
func WithLLM(p ai.LLMProvider) AppOption {
	return func(o *appOptions) {
		o.llm = p
	}
}

func WithLogger(logger *slog.Logger) AppOption {
	return func(o *appOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithInMemoryBadger opens badger without touching the data directory.
func WithInMemoryBadger() AppOption {
	return func(o *appOptions) {
		o.inMemory = true
	}
}

// NewApp builds every collaborator named by cfg. On failure anything
// already opened is closed again.
func NewApp(ctx context.Context, cfg *config.Config, opts ...AppOption) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := &appOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	app := &App{config: cfg, logger: options.logger}
	if err := app.open(ctx, options); err != nil {
		if closeErr := app.Close(); closeErr != nil {
			app.logger.Error("error closing partially opened app", "err", closeErr)
		}
		return nil, err
	}
	return app, nil
}

func (a *App) open(ctx context.Context, options *appOptions) error {
	cfg := a.config
	var err error

	if cfg.Queue == config.BackendBadger || cfg.Store.Backend == config.BackendBadger {
		a.backend, err = badger.OpenBackend(cfg.BadgerDir(), options.inMemory)
		if err != nil {
			return fmt.Errorf("opening badger: %w", err)
		}
	}

	a.embedder = options.embedder
	if a.embedder == nil {
		a.embedder, err = newEmbedder(cfg.AI())
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
	}
	dim := a.embedder.Dimension()

	switch cfg.Store.Backend {
	case config.BackendBadger:
		a.store, err = badger.NewVectorStore(a.backend, dim)
	case config.BackendMemory:
		a.store = memory.NewStore(dim)
	case config.BackendQdrant:
		var qs *qdrant.Store
		qs, err = qdrant.New(ctx, qdrant.Config{
			URL:        cfg.Store.Qdrant.URL,
			APIKey:     cfg.Store.Qdrant.APIKey,
			Collection: cfg.Store.Qdrant.Collection,
			Dimension:  dim,
			Timeout:    cfg.Store.Qdrant.Timeout,
			Logger:     a.logger,
		})
		if err == nil {
			a.store = qs
		}
	}
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}

	switch cfg.Queue {
	case config.BackendBadger:
		q, err := badger.NewQueue(a.backend)
		if err != nil {
			return fmt.Errorf("opening badger queue: %w", err)
		}
		a.queue = q
	case config.BackendMemory:
		a.queue = queue.NewMemory()
	}

	switch cfg.Catalog {
	case config.BackendSQLite:
		c, err := sqlite.Open(cfg.CatalogFile())
		if err != nil {
			return fmt.Errorf("opening catalog: %w", err)
		}
		a.catalog = c
	case config.BackendMemory:
		a.catalog = catalog.NewMemory()
	}

	a.llm = options.llm
	if a.llm == nil {
		a.llm, err = llm.New(ctx, cfg.AI(), llm.WithLogger(a.logger))
		if err != nil {
			return fmt.Errorf("creating llm: %w", err)
		}
	}
	return nil
}

func newEmbedder(cfg *ai.Config) (ai.Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.EmbeddingBackend == ai.EmbeddingHash {
		return mock.NewMockEmbedder(cfg.Dimension), nil
	}
	return openai.NewEmbedder(cfg)
}

// Close releases every collaborator, store and queue before the shared
// backend.
func (a *App) Close() error {
	var errs []error
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			a.logger.Error("error closing queue", "err", err)
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("error closing vector store", "err", err)
			errs = append(errs, err)
		}
	}
	if a.catalog != nil {
		if err := a.catalog.Close(); err != nil {
			a.logger.Error("error closing catalog", "err", err)
			errs = append(errs, err)
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Store() storage.VectorStore {
	return a.store
}

func (a *App) Queue() queue.Queue {
	return a.queue
}

// Catalog returns the document catalog, or nil when disabled.
func (a *App) Catalog() catalog.Catalog {
	return a.catalog
}

func (a *App) Embedder() ai.Embedder {
	return a.embedder
}

func (a *App) LLM() ai.LLMProvider {
	return a.llm
}

// NewPipeline creates an ingestion pipeline sized by the configuration.
func (a *App) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	splitter, err := textsplit.New(a.config.Chunking.Size, a.config.Chunking.Overlap)
	if err != nil {
		return nil, err
	}
	base := []ingestion.Option{
		ingestion.WithPoolSize(a.config.Ingestion.Workers),
		ingestion.WithLogger(a.logger),
	}
	if a.config.Ingestion.Backoff > 0 {
		base = append(base, ingestion.WithBackoff(a.config.Ingestion.Backoff))
	}
	if a.catalog != nil {
		base = append(base, ingestion.WithCatalog(a.catalog))
	}
	extractor := extract.NewDispatcher(extract.WithLogger(a.logger))
	return ingestion.NewPipeline(a.queue, extractor, splitter, a.embedder, a.store, append(base, opts...)...)
}

// NewOrchestrator creates a query orchestrator using the configured top k.
func (a *App) NewOrchestrator(opts ...query.Option) (*query.Orchestrator, error) {
	base := []query.Option{
		query.WithTopK(a.config.TopK),
		query.WithLogger(a.logger),
		query.WithMonitor(query.NewLogMonitor(a.logger)),
	}
	return query.NewOrchestrator(a.embedder, a.store, a.llm, append(base, opts...)...)
}

// NewServer creates the HTTP transport over the app's collaborators.
func (a *App) NewServer(opts ...server.Option) (*server.Server, error) {
	orch, err := a.NewOrchestrator()
	if err != nil {
		return nil, err
	}
	base := []server.Option{server.WithLogger(a.logger)}
	if a.catalog != nil {
		base = append(base, server.WithCatalog(a.catalog))
	}
	return server.New(a.queue, a.store, orch, append(base, opts...)...)
}

// NewReembedder creates a reembedder over the store, reporting progress to
// out. A nil cfg uses reembed.DefaultConfig.
func (a *App) NewReembedder(cfg *reembed.Config, out io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(a.store, a.embedder, cfg, out)
}

// DeleteDocument removes a document's chunks and its catalog entry.
func (a *App) DeleteDocument(ctx context.Context, documentID string) error {
	if err := a.store.DeleteDocumentChunks(ctx, documentID); err != nil {
		return err
	}
	if a.catalog != nil {
		return a.catalog.Delete(ctx, documentID)
	}
	return nil
}

// DeadLetters returns the recorded ingestion failures when the queue keeps them.
func (a *App) DeadLetters(ctx context.Context) ([]queue.DeadLetter, error) {
	dl, ok := a.queue.(queue.DeadLetterer)
	if !ok {
		return nil, ErrNoDeadLetters
	}
	return dl.DeadLetters(ctx)
}
