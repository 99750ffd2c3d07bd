package catalog

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/poiesic/ragstream/core"
)

// ErrNotFound is returned when a document is not in the catalog.
var ErrNotFound = errors.New("document not found")

// Catalog stores Document records. Implementations must be thread-safe.
type Catalog interface {
	// Put inserts or replaces doc.
	Put(ctx context.Context, doc *core.Document) error

	// Get returns the document with id or ErrNotFound.
	Get(ctx context.Context, id string) (*core.Document, error)

	// List returns every document, oldest first.
	List(ctx context.Context) ([]*core.Document, error)

	// MarkProcessed flags the document as fully ingested.
	MarkProcessed(ctx context.Context, id string) error

	// Delete removes the document. Deleting an unknown id succeeds.
	Delete(ctx context.Context, id string) error

	// Close releases resources held by the catalog.
	Close() error
}

// Memory is an in-process Catalog.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]*core.Document
}

var _ Catalog = (*Memory)(nil)

// NewMemory returns an empty catalog.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]*core.Document)}
}

func (m *Memory) Put(_ context.Context, doc *core.Document) error {
	if doc.ID == "" {
		return core.ErrEmptyDocumentID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = clone(doc)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*core.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(doc), nil
}

func (m *Memory) List(_ context.Context) ([]*core.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := make([]*core.Document, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, clone(doc))
	}
	slices.SortFunc(docs, compareDocuments)
	return docs, nil
}

func (m *Memory) MarkProcessed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	doc.Processed = true
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *Memory) Close() error {
	return nil
}

func compareDocuments(a, b *core.Document) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func clone(doc *core.Document) *core.Document {
	c := *doc
	c.Metadata = maps.Clone(doc.Metadata)
	return &c
}
