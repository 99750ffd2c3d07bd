package core

import "errors"

// Failure classes shared by the ingestion and query pipelines.
// Call sites wrap the cause with fmt.Errorf("%w: %w", ErrX, err).
var (
	// ErrExtraction indicates an unreadable or corrupt source document.
	ErrExtraction = errors.New("extraction failed")

	// ErrEmbedding indicates an embedding provider call failed.
	ErrEmbedding = errors.New("embedding failed")

	// ErrStorage indicates a vector store call failed.
	ErrStorage = errors.New("storage failed")

	// ErrGeneration indicates the LLM backend failed mid-stream.
	ErrGeneration = errors.New("generation failed")

	// ErrQueueConnectivity indicates the work queue is unavailable.
	ErrQueueConnectivity = errors.New("queue unavailable")
)

// Validation errors
var (
	// ErrInvalidJob indicates an IngestionJob failed validation.
	ErrInvalidJob = errors.New("invalid ingestion job")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrEmptyDocumentID indicates the document id is empty.
	ErrEmptyDocumentID = errors.New("document id cannot be empty")

	// ErrEmptyFilePath indicates the file path is empty.
	ErrEmptyFilePath = errors.New("file path cannot be empty")

	// ErrEmptyChunkID indicates the chunk id is empty.
	ErrEmptyChunkID = errors.New("chunk id cannot be empty")

	// ErrNegativeChunkIndex indicates a chunk index below zero.
	ErrNegativeChunkIndex = errors.New("chunk index cannot be negative")
)
