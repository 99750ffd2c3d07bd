// Package storagetest holds the behavioral test suite every
// storage.VectorStore implementation must pass.
package storagetest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Dimension is the vector length used by the suite. Factories must accept it.
const Dimension = 3

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) storage.VectorStore

// NewChunk builds a chunk for documentID at index with the given vector.
func NewChunk(documentID string, index int, content string, vector ...float32) *core.Chunk {
	return &core.Chunk{
		ID:         core.ChunkID(documentID, index),
		DocumentID: documentID,
		Content:    content,
		Embedding:  vector,
		Metadata: map[string]string{
			core.MetaFilename:   documentID + ".txt",
			core.MetaChunkIndex: strconv.Itoa(index),
		},
		ChunkIndex: index,
	}
}

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	open := func(t *testing.T) storage.VectorStore {
		t.Helper()
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	t.Run("empty batch succeeds", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.AddChunks(ctx, nil))
		require.NoError(t, s.AddChunks(ctx, []*core.Chunk{}))
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("search on empty store", func(t *testing.T) {
		s := open(t)
		hits, err := s.Search(ctx, []float32{1, 0, 0}, 3)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("upsert is idempotent", func(t *testing.T) {
		s := open(t)
		c := NewChunk("doc", 0, "hello world", 1, 0, 0)
		require.NoError(t, s.AddChunks(ctx, []*core.Chunk{c}))
		require.NoError(t, s.AddChunks(ctx, []*core.Chunk{c}))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		hits, err := s.Search(ctx, []float32{1, 0, 0}, 5)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, c.ID, hits[0].Chunk.ID)
	})

	t.Run("upsert replaces content", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.AddChunks(ctx, []*core.Chunk{NewChunk("doc", 0, "old", 1, 0, 0)}))
		require.NoError(t, s.AddChunks(ctx, []*core.Chunk{NewChunk("doc", 0, "new", 0, 1, 0)}))

		hits, err := s.Search(ctx, []float32{0, 1, 0}, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "new", hits[0].Chunk.Content)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	})

	t.Run("search ranks by similarity and honors k", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.AddChunks(ctx, []*core.Chunk{
			NewChunk("doc", 0, "far", 0, 0, 1),
			NewChunk("doc", 1, "exact", 1, 0, 0),
			NewChunk("doc", 2, "close", 0.9, 0.1, 0),
			NewChunk("doc", 3, "orthogonal", 0, 1, 0),
		}))

		hits, err := s.Search(ctx, []float32{1, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "exact", hits[0].Chunk.Content)
		assert.Equal(t, "close", hits[1].Chunk.Content)
		assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)

		all, err := s.Search(ctx, []float32{1, 0, 0}, 10)
		require.NoError(t, err)
		require.Len(t, all, 4)
		for i := 1; i < len(all); i++ {
			assert.GreaterOrEqual(t, all[i-1].Score, all[i].Score)
		}

		none, err := s.Search(ctx, []float32{1, 0, 0}, 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("ties are ordered by chunk id", func(t *testing.T) {
		s := open(t)
		chunks := []*core.Chunk{
			NewChunk("tie", 0, "a", 0, 1, 0),
			NewChunk("tie", 1, "b", 0, 1, 0),
			NewChunk("tie", 2, "c", 0, 1, 0),
		}
		require.NoError(t, s.AddChunks(ctx, chunks))

		hits, err := s.Search(ctx, []float32{0, 1, 0}, 3)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		for i := 1; i < len(hits); i++ {
			assert.Less(t, hits[i-1].Chunk.ID, hits[i].Chunk.ID)
		}
	})

	t.Run("chunk fields round trip", func(t *testing.T) {
		s := open(t)
		c := &core.Chunk{
			ID:         "chunk-x",
			DocumentID: "doc-x",
			Content:    "X is great",
			Embedding:  []float32{0, 0, 1},
			Metadata:   map[string]string{core.MetaFilename: "a.pdf", core.MetaPage: "2", core.MetaChunkIndex: "4"},
			ChunkIndex: 4,
		}
		require.NoError(t, s.AddChunks(ctx, []*core.Chunk{c}))

		hits, err := s.Search(ctx, []float32{0, 0, 1}, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		got := hits[0].Chunk
		assert.Equal(t, c.ID, got.ID)
		assert.Equal(t, c.DocumentID, got.DocumentID)
		assert.Equal(t, c.Content, got.Content)
		assert.Equal(t, c.ChunkIndex, got.ChunkIndex)
		assert.Equal(t, c.Metadata, got.Metadata)
		assert.Equal(t, "a.pdf", got.Filename())
		assert.Equal(t, 2, got.Page())
	})

	t.Run("delete document chunks", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.AddChunks(ctx, []*core.Chunk{
			NewChunk("d1", 0, "one", 1, 0, 0),
			NewChunk("d1", 1, "two", 0.8, 0.2, 0),
			NewChunk("d2", 0, "three", 0.9, 0.1, 0),
		}))

		require.NoError(t, s.DeleteDocumentChunks(ctx, "d1"))
		require.NoError(t, s.DeleteDocumentChunks(ctx, "never-ingested"))

		hits, err := s.Search(ctx, []float32{1, 0, 0}, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "d2", hits[0].Chunk.DocumentID)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("rejects wrong dimension", func(t *testing.T) {
		s := open(t)
		err := s.AddChunks(ctx, []*core.Chunk{NewChunk("doc", 0, "bad", 1, 0)})
		assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		s := open(t)
		const writers, perWriter = 4, 10
		var wg sync.WaitGroup
		errs := make(chan error, writers*2)
		for w := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				doc := fmt.Sprintf("doc-%d", w)
				batch := make([]*core.Chunk, perWriter)
				for i := range batch {
					batch[i] = NewChunk(doc, i, doc, float32(w+1), float32(i+1), 1)
				}
				// Every writer upserts its batch twice.
				errs <- s.AddChunks(ctx, batch)
				errs <- s.AddChunks(ctx, batch)
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, writers*perWriter, n)
	})

	probe := newStore(t)
	_, scannable := probe.(storage.ChunkScanner)
	require.NoError(t, probe.Close())
	if scannable {
		t.Run("scan visits every chunk", func(t *testing.T) {
			s := open(t)
			var batch []*core.Chunk
			for i := range 7 {
				batch = append(batch, NewChunk("scan", i, "c", 1, float32(i), 0))
			}
			require.NoError(t, s.AddChunks(ctx, batch))

			seen := map[string]bool{}
			var sizes []int
			err := s.(storage.ChunkScanner).ScanChunks(ctx, 3, func(chunks []*core.Chunk) error {
				sizes = append(sizes, len(chunks))
				for _, c := range chunks {
					seen[c.ID] = true
					assert.Len(t, c.Embedding, Dimension)
				}
				return nil
			})
			require.NoError(t, err)
			assert.Len(t, seen, 7)
			for _, n := range sizes {
				assert.LessOrEqual(t, n, 3)
			}
		})
	}
}
