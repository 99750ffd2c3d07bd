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

package ragstream

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/ai/mock"
	"github.com/poiesic/ragstream/config"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offlineConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Embedding.Backend = ai.EmbeddingHash
	cfg.Embedding.Dimension = 16
	cfg.LLM.Backend = ai.LLMMock
	cfg.Ingestion.Workers = 1
	cfg.Ingestion.Backoff = 10 * time.Millisecond
	return cfg
}

func TestNewApp(t *testing.T) {
	t.Run("persistent defaults", func(t *testing.T) {
		cfg := offlineConfig(t)
		app, err := NewApp(context.Background(), cfg)
		require.NoError(t, err)
		defer app.Close()

		assert.NotNil(t, app.backend)
		assert.NotNil(t, app.Store())
		assert.NotNil(t, app.Queue())
		assert.NotNil(t, app.Catalog())
		assert.Equal(t, 16, app.Embedder().Dimension())
		assert.Equal(t, ai.LLMMock, app.LLM().Name())
		assert.FileExists(t, cfg.CatalogFile())
	})

	t.Run("all in memory", func(t *testing.T) {
		cfg := offlineConfig(t)
		cfg.Queue = config.BackendMemory
		cfg.Store.Backend = config.BackendMemory
		cfg.Catalog = config.BackendNone

		app, err := NewApp(context.Background(), cfg)
		require.NoError(t, err)
		defer app.Close()

		assert.Nil(t, app.backend)
		assert.Nil(t, app.Catalog())
		_, err = app.DeadLetters(context.Background())
		assert.NoError(t, err)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := offlineConfig(t)
		cfg.TopK = 0
		app, err := NewApp(context.Background(), cfg)
		assert.Error(t, err)
		assert.Nil(t, app)
	})

	t.Run("data dir is a file", func(t *testing.T) {
		cfg := offlineConfig(t)
		file := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(file, []byte("test"), 0o644))
		cfg.DataDir = file

		app, err := NewApp(context.Background(), cfg)
		assert.Error(t, err)
		assert.Nil(t, app)
	})
}

func TestAppClose(t *testing.T) {
	app, err := NewApp(context.Background(), offlineConfig(t), WithInMemoryBadger())
	require.NoError(t, err)
	assert.NoError(t, app.Close())
	assert.True(t, app.backend.IsClosed())
}

func TestAppIngestAndQuery(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := offlineConfig(t)
	llm := mock.NewMockLLM("Paris", ".")
	app, err := NewApp(ctx, cfg, WithInMemoryBadger(), WithLLM(llm))
	require.NoError(t, err)
	defer app.Close()

	path := filepath.Join(t.TempDir(), "france.txt")
	require.NoError(t, os.WriteFile(path, []byte("Paris is the capital of France."), 0o644))
	require.NoError(t, app.Catalog().Put(ctx, &core.Document{ID: "doc-1", Filename: "france.txt"}))
	require.NoError(t, app.Queue().Enqueue(ctx, core.IngestionJob{DocumentID: "doc-1", FilePath: path}))

	pipeline, err := app.NewPipeline()
	require.NoError(t, err)
	runCtx, stop := context.WithCancel(ctx)
	require.NoError(t, pipeline.Start(runCtx))

	require.Eventually(t, func() bool {
		n, err := app.Store().Count(ctx)
		return err == nil && n == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		doc, err := app.Catalog().Get(ctx, "doc-1")
		return err == nil && doc.Processed
	}, 5*time.Second, 10*time.Millisecond)
	stop()
	pipeline.Wait()
	pipeline.Release()

	orch, err := app.NewOrchestrator()
	require.NoError(t, err)
	var events []core.StreamEvent
	require.NoError(t, orch.Stream(ctx, "What is the capital of France?", func(ev core.StreamEvent) error {
		events = append(events, ev)
		return nil
	}))
	require.Len(t, events, 4)
	assert.Equal(t, core.Citation{Source: "france.txt", Page: 1, Text: "Paris is the capital of France...."}, events[0].Citation)
	assert.Equal(t, core.DoneEvent(), events[3])

	require.NoError(t, app.DeleteDocument(ctx, "doc-1"))
	n, err := app.Store().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAppFactories(t *testing.T) {
	app, err := NewApp(context.Background(), offlineConfig(t), WithInMemoryBadger())
	require.NoError(t, err)
	defer app.Close()

	srv, err := app.NewServer()
	require.NoError(t, err)
	assert.NotNil(t, srv.Handler())

	r, err := app.NewReembedder(nil, nil)
	require.NoError(t, err)
	processed, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)

	dead, err := app.DeadLetters(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dead)
}

func TestDeadLettersUnsupported(t *testing.T) {
	app := &App{queue: plainQueue{queue.NewMemory()}}
	_, err := app.DeadLetters(context.Background())
	assert.ErrorIs(t, err, ErrNoDeadLetters)
}

// plainQueue hides the memory queue's dead-letter methods.
type plainQueue struct {
	queue.Queue
}
