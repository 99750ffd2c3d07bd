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

package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of chunks embedded per call
	BatchSize int

	// Retry bounds the attempts for each batch embedding call
	Retry RetryPolicy
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize: 100,
		Retry: RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
		},
	}
}

// Store is a vector store that can enumerate its chunks.
type Store interface {
	storage.VectorStore
	storage.ChunkScanner
}

// Reembedder orchestrates the reembedding of every chunk in a store.
type Reembedder struct {
	store     Store
	config    *Config
	out       io.Writer
	processor *BatchProcessor
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder. store must implement
// storage.ChunkScanner. Progress and the summary are written to out
// (typically os.Stderr); a nil out disables them.
func NewReembedder(store storage.VectorStore, embedder ai.Embedder, config *Config, out io.Writer) (*Reembedder, error) {
	scannable, ok := store.(Store)
	if !ok {
		return nil, ErrNotScannable
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	logger := slog.Default().With("component", "reembed")

	return &Reembedder{
		store:     scannable,
		config:    config,
		out:       out,
		processor: NewBatchProcessor(store, embedder, config.Retry, logger),
		logger:    logger,
	}, nil
}

// Run re-embeds every chunk and returns how many were processed.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	total, err := r.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	if total == 0 {
		r.printf("No chunks found in store (0 chunks)\n")
		return 0, nil
	}

	r.printf("Starting reembedding of %d chunks (batch size: %d)\n", total, r.config.BatchSize)
	var progress Progress = noProgress{}
	if r.out != nil {
		progress = NewProgressBar(r.out, total)
	}

	started := time.Now()
	processed := 0
	err = r.store.ScanChunks(ctx, r.config.BatchSize, func(chunks []*core.Chunk) error {
		if err := r.processor.Process(ctx, chunks); err != nil {
			return fmt.Errorf("failed to process batch at chunk %d: %w", processed, err)
		}
		processed += len(chunks)
		_ = progress.Add(len(chunks))
		return nil
	})
	if err != nil {
		r.logger.Error("reembedding stopped", "processed", processed, "err", err)
		return processed, err
	}
	_ = progress.Finish()

	elapsed := time.Since(started)
	r.printf("Reembedding complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		processed, elapsed.Round(time.Millisecond), float64(processed)/elapsed.Seconds())
	return processed, nil
}

func (r *Reembedder) printf(format string, args ...any) {
	if r.out != nil {
		fmt.Fprintf(r.out, format, args...)
	}
}
