package core

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Metadata keys written on every stored chunk.
const (
	MetaFilename   = "filename"
	MetaChunkIndex = "chunk_index"
	MetaPage       = "page"
)

// ChunkID derives a deterministic chunk identifier from the owning document
// and the chunk's position. Re-ingesting a document overwrites chunks at the
// same positions; the ingestion worker removes the rest.
func ChunkID(documentID string, chunkIndex int) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(documentID + ":" + strconv.Itoa(chunkIndex)))
	return hex.EncodeToString(h.Sum(nil))
}

// Document describes a source file accepted for ingestion.
type Document struct {
	ID          string
	Filename    string
	ContentType string
	Size        int64
	Metadata    map[string]string
	CreatedAt   time.Time
	Processed   bool
}

// Chunk is a bounded span of a document's text plus its embedding.
type Chunk struct {
	ID         string
	DocumentID string
	Content    string
	Embedding  []float32
	Metadata   map[string]string
	ChunkIndex int
}

// Filename returns the source filename recorded in the chunk metadata.
func (c *Chunk) Filename() string {
	if name := c.Metadata[MetaFilename]; name != "" {
		return name
	}
	return "unknown"
}

// Page returns the page number recorded in the chunk metadata, or 1.
func (c *Chunk) Page() int {
	if p, err := strconv.Atoi(c.Metadata[MetaPage]); err == nil && p > 0 {
		return p
	}
	return 1
}

// ScoredChunk is a search hit.
type ScoredChunk struct {
	Chunk *Chunk
	Score float32
}

// IngestionJob is the queue payload handed from the enqueuer to a worker.
type IngestionJob struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	FilePath   string `json:"file_path"`
}
