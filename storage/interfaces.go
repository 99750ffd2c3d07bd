package storage

import (
	"context"

	"github.com/poiesic/ragstream/core"
)

// VectorStore stores chunks with their embeddings and answers k-nearest
// neighbor queries. Implementations must be thread-safe.
type VectorStore interface {
	// AddChunks upserts chunks keyed by Chunk.ID. Re-adding an existing id
	// replaces the stored chunk. An empty batch succeeds without effect.
	// The batch is applied atomically where the backend allows it.
	AddChunks(ctx context.Context, chunks []*core.Chunk) error

	// Search returns at most k chunks ordered by descending similarity to
	// vector, ties broken by ascending chunk id. k <= 0 yields no results.
	Search(ctx context.Context, vector []float32, k int) ([]*core.ScoredChunk, error)

	// DeleteDocumentChunks removes every chunk belonging to documentID.
	// Deleting an unknown document succeeds.
	DeleteDocumentChunks(ctx context.Context, documentID string) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// ChunkScanner is implemented by stores that can enumerate their contents.
type ChunkScanner interface {
	// ScanChunks calls fn with successive batches of at most batchSize
	// chunks until every chunk has been visited or fn returns an error.
	ScanChunks(ctx context.Context, batchSize int, fn func(chunks []*core.Chunk) error) error
}

// ValidateBatch checks that every chunk is well formed and, when dim is
// positive, that every embedding has dim values.
func ValidateBatch(chunks []*core.Chunk, dim int) error {
	for _, c := range chunks {
		if err := core.ValidateChunk(c); err != nil {
			return err
		}
		if len(c.Embedding) == 0 {
			return ErrEmptyEmbedding
		}
		if dim > 0 && len(c.Embedding) != dim {
			return ErrDimensionMismatch
		}
	}
	return nil
}
