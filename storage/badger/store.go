package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
)

// Store is a storage.VectorStore persisted in BadgerDB. Chunks are stored
// under their id with a secondary index by document; search scores every
// stored chunk.
type Store struct {
	backend *Backend
	dim     int
	logger  *slog.Logger
}

var (
	_ storage.VectorStore  = (*Store)(nil)
	_ storage.ChunkScanner = (*Store)(nil)
)

// newStore is an internal constructor that returns the concrete type.
func newStore(backend *Backend, dim int) (*Store, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	return &Store{
		backend: backend,
		dim:     dim,
		logger:  backend.logger.With("store", "chunks"),
	}, nil
}

// NewVectorStore creates a vector store on backend. A positive dim makes
// AddChunks and Search reject vectors of any other length. The store does
// not own the backend.
func NewVectorStore(backend *Backend, dim int) (storage.VectorStore, error) {
	s, err := newStore(backend, dim)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// AddChunks upserts the batch in a single transaction.
func (s *Store) AddChunks(ctx context.Context, chunks []*core.Chunk) error {
	if err := storage.ValidateBatch(chunks, s.dim); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	err := s.backend.Update(ctx, func(tx *badger.Txn) error {
		for _, c := range chunks {
			if err := putChunk(tx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("stored chunks", "count", len(chunks), "document_id", chunks[0].DocumentID)
	return nil
}

func putChunk(tx *badger.Txn, c *core.Chunk) error {
	key := makeChunkKey(c.ID)

	// A chunk moving to another document must leave the old document's index.
	item, err := tx.Get(key)
	switch {
	case err == nil:
		var old *core.Chunk
		if err := item.Value(func(val []byte) error {
			var err error
			old, err = storage.UnmarshalChunk(val)
			return err
		}); err != nil {
			return err
		}
		if old.DocumentID != c.DocumentID {
			if err := tx.Delete(makeChunkDocKey(old.DocumentID, old.ID)); err != nil {
				return err
			}
		}
	case errors.Is(err, badger.ErrKeyNotFound):
	default:
		return err
	}

	if err := tx.Set(key, storage.MarshalChunk(c)); err != nil {
		return err
	}
	return tx.Set(makeChunkDocKey(c.DocumentID, c.ID), []byte{})
}

// Search scores every stored chunk against vector.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]*core.ScoredChunk, error) {
	if s.dim > 0 && len(vector) != s.dim {
		return nil, storage.ErrDimensionMismatch
	}
	if k <= 0 {
		return []*core.ScoredChunk{}, nil
	}

	var hits []*core.ScoredChunk
	err := s.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			hits = append(hits, &core.ScoredChunk{
				Chunk: chunk,
				Score: storage.Cosine(vector, chunk.Embedding),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return storage.Rank(hits, k), nil
}

// DeleteDocumentChunks removes the document's chunks and index entries.
func (s *Store) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	prefix := makePartialChunkDocKey(documentID)
	deleted := 0
	err := s.backend.Update(ctx, func(tx *badger.Txn) error {
		var indexKeys [][]byte
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			indexKeys = append(indexKeys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range indexKeys {
			if err := tx.Delete(makeChunkKey(chunkIDFromDocKey(key, documentID))); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		deleted = len(indexKeys)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("deleted document chunks", "document_id", documentID, "count", deleted)
	return nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(_ context.Context) (int, error) {
	n := 0
	err := s.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// ScanChunks visits every chunk in key order from one consistent snapshot.
func (s *Store) ScanChunks(ctx context.Context, batchSize int, fn func([]*core.Chunk) error) error {
	if batchSize <= 0 {
		batchSize = 100
	}
	return s.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		batch := make([]*core.Chunk, 0, batchSize)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return fmt.Errorf("chunk %s: %w", iter.Item().Key(), err)
			}
			batch = append(batch, chunk)
			if len(batch) == batchSize {
				if err := fn(batch); err != nil {
					return err
				}
				batch = make([]*core.Chunk, 0, batchSize)
			}
		}
		if len(batch) > 0 {
			return fn(batch)
		}
		return nil
	})
}

// Close is a no-op; the backend is closed by its owner.
func (s *Store) Close() error {
	return nil
}
