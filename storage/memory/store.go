// Package memory provides an in-process storage.VectorStore. Contents are
// lost when the process exits; it suits tests and single-process demos.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
)

// Store keeps chunks in a map guarded by a RWMutex.
type Store struct {
	mu     sync.RWMutex
	dim    int
	chunks map[string]*core.Chunk
	byDoc  map[string]map[string]struct{}
}

var (
	_ storage.VectorStore  = (*Store)(nil)
	_ storage.ChunkScanner = (*Store)(nil)
)

// NewStore creates an empty store. A positive dim makes AddChunks and
// Search reject vectors of any other length.
func NewStore(dim int) *Store {
	return &Store{
		dim:    dim,
		chunks: make(map[string]*core.Chunk),
		byDoc:  make(map[string]map[string]struct{}),
	}
}

// AddChunks upserts the batch atomically.
func (s *Store) AddChunks(_ context.Context, chunks []*core.Chunk) error {
	if err := storage.ValidateBatch(chunks, s.dim); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		if old, ok := s.chunks[c.ID]; ok && old.DocumentID != c.DocumentID {
			s.unindex(old)
		}
		s.chunks[c.ID] = clone(c)
		ids, ok := s.byDoc[c.DocumentID]
		if !ok {
			ids = make(map[string]struct{})
			s.byDoc[c.DocumentID] = ids
		}
		ids[c.ID] = struct{}{}
	}
	return nil
}

// Search scores every chunk against vector.
func (s *Store) Search(_ context.Context, vector []float32, k int) ([]*core.ScoredChunk, error) {
	if s.dim > 0 && len(vector) != s.dim {
		return nil, storage.ErrDimensionMismatch
	}
	if k <= 0 {
		return []*core.ScoredChunk{}, nil
	}
	s.mu.RLock()
	hits := make([]*core.ScoredChunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		hits = append(hits, &core.ScoredChunk{Chunk: clone(c), Score: storage.Cosine(vector, c.Embedding)})
	}
	s.mu.RUnlock()
	return storage.Rank(hits, k), nil
}

// DeleteDocumentChunks removes every chunk of documentID.
func (s *Store) DeleteDocumentChunks(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.byDoc[documentID] {
		delete(s.chunks, id)
	}
	delete(s.byDoc, documentID)
	return nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// ScanChunks visits chunks in id order over a snapshot of the ids.
func (s *Store) ScanChunks(ctx context.Context, batchSize int, fn func([]*core.Chunk) error) error {
	if batchSize <= 0 {
		batchSize = 100
	}
	s.mu.RLock()
	ids := slices.Sorted(maps.Keys(s.chunks))
	s.mu.RUnlock()

	for batch := range slices.Chunk(ids, batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunks := make([]*core.Chunk, 0, len(batch))
		s.mu.RLock()
		for _, id := range batch {
			if c, ok := s.chunks[id]; ok {
				chunks = append(chunks, clone(c))
			}
		}
		s.mu.RUnlock()
		if len(chunks) == 0 {
			continue
		}
		if err := fn(chunks); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func (s *Store) unindex(c *core.Chunk) {
	if ids, ok := s.byDoc[c.DocumentID]; ok {
		delete(ids, c.ID)
		if len(ids) == 0 {
			delete(s.byDoc, c.DocumentID)
		}
	}
}

func clone(c *core.Chunk) *core.Chunk {
	cp := *c
	cp.Embedding = slices.Clone(c.Embedding)
	cp.Metadata = maps.Clone(c.Metadata)
	return &cp
}
