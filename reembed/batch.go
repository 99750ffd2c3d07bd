package reembed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
)

// BatchProcessor re-embeds one batch of chunks and writes it back.
type BatchProcessor struct {
	store    storage.VectorStore
	embedder ai.Embedder
	retry    RetryPolicy
	logger   *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor(store storage.VectorStore, embedder ai.Embedder, retry RetryPolicy, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		store:    store,
		embedder: embedder,
		retry:    retry,
		logger:   logger,
	}
}

// Process embeds the contents of chunks in one call and upserts them with
// the new vectors. The chunks are modified in place.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, bp.retry, bp.logger, func(ctx context.Context) error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: after %d attempts: %w", core.ErrEmbedding, bp.retry.MaxAttempts, err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: expected %d vectors, got %d", core.ErrEmbedding, len(chunks), len(embeddings))
	}

	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := bp.store.AddChunks(ctx, chunks); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	return nil
}
