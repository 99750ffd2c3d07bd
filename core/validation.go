package core

import "fmt"

// ValidateJob validates an IngestionJob.
//
// Validation rules:
//   - DocumentID must not be empty
//   - FilePath must not be empty
//
// Filename may be empty; workers fall back to the base name of FilePath.
func ValidateJob(job *IngestionJob) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", ErrInvalidJob)
	}
	if job.DocumentID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrEmptyDocumentID)
	}
	if job.FilePath == "" {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrEmptyFilePath)
	}
	return nil
}

// ValidateChunk validates a Chunk prior to storage.
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if chunk.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyChunkID)
	}
	if chunk.DocumentID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyDocumentID)
	}
	if chunk.ChunkIndex < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrNegativeChunkIndex)
	}
	return nil
}
