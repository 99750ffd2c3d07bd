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

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/ragstream/catalog"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func findFlag[F cli.Flag](flags []cli.Flag, name string) F {
	var zero F
	for _, flag := range flags {
		if f, ok := flag.(F); ok && flag.Names()[0] == name {
			return f
		}
	}
	return zero
}

func TestCommandsRegistered(t *testing.T) {
	app := newApp()
	for _, name := range []string{"serve", "worker", "ingest", "query", "delete", "documents", "reembed", "dead-letters"} {
		t.Run(name, func(t *testing.T) {
			cmd := findCommand(t, app, name)
			assert.NotNil(t, cmd.Action)
			assert.NotEmpty(t, cmd.Usage)
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	app := newApp()

	t.Run("log-level defaults to info", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](app.Flags, "log-level")
		require.NotNil(t, f)
		assert.Equal(t, "info", f.Value)
		assert.Equal(t, []string{"l"}, f.Aliases)
	})

	t.Run("config has default path and env var", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](app.Flags, "config")
		require.NotNil(t, f)
		assert.Equal(t, "ragstream.yaml", f.Value)
		assert.Equal(t, []string{"RAGSTREAM_CONFIG"}, f.EnvVars)
	})

	t.Run("api keys come from env vars", func(t *testing.T) {
		llmKey := findFlag[*cli.StringFlag](app.Flags, "llm-api-key")
		require.NotNil(t, llmKey)
		assert.Equal(t, []string{"RAGSTREAM_LLM_API_KEY"}, llmKey.EnvVars)
		assert.Empty(t, llmKey.Value)

		embKey := findFlag[*cli.StringFlag](app.Flags, "embedding-api-key")
		require.NotNil(t, embKey)
		assert.Equal(t, []string{"RAGSTREAM_EMBEDDING_API_KEY"}, embKey.EnvVars)
	})
}

func TestReembedFlags(t *testing.T) {
	cmd := findCommand(t, newApp(), "reembed")

	batch := findFlag[*cli.IntFlag](cmd.Flags, "batch-size")
	require.NotNil(t, batch)
	assert.Equal(t, 100, batch.Value)

	retries := findFlag[*cli.IntFlag](cmd.Flags, "max-retries")
	require.NotNil(t, retries)
	assert.Equal(t, 3, retries.Value)
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"INFO", false},
		{"warn", false},
		{"error", false},
		{"verbose", true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			app := newApp()
			app.Writer = &bytes.Buffer{}
			err := app.Run([]string{"ragstream", "--log-level", tt.level, "help"})
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid log level")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// offline writes a config that needs no network services.
func offline(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ragstream.yaml")
	data := fmt.Sprintf(`
data_dir: %s
embedding:
  backend: hash
  dimension: 16
llm:
  backend: mock
ingestion:
  workers: 1
`, filepath.Join(dir, "data"))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"ragstream", "--log-level", "error"}, args...))
	return out.String(), err
}

func TestIngestValidation(t *testing.T) {
	cfg := offline(t)

	_, err := run(t, "--config", cfg, "ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one file")

	_, err = run(t, "--config", cfg, "ingest", "--document-id", "x", "a.txt", "b.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single file")

	_, err = run(t, "--config", cfg, "ingest", filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot ingest")
}

func TestIngestListDelete(t *testing.T) {
	cfg := offline(t)
	file := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("some notes"), 0o644))

	out, err := run(t, "--config", cfg, "ingest", "--document-id", "doc-1", file)
	require.NoError(t, err)
	assert.Equal(t, "doc-1\t"+file+"\n", out)

	out, err = run(t, "--config", cfg, "documents")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "doc-1\tnotes.txt\tpending\t"), out)

	out, err = run(t, "--config", cfg, "dead-letters")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = run(t, "--config", cfg, "delete", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "deleted doc-1\n", out)

	out, err = run(t, "--config", cfg, "documents")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestQueueDocument(t *testing.T) {
	ctx := context.Background()
	job := core.IngestionJob{DocumentID: "doc-1", Filename: "report.pdf", FilePath: "/tmp/report.pdf"}

	t.Run("records details and enqueues", func(t *testing.T) {
		cat := catalog.NewMemory()
		q := queue.NewMemory()
		require.NoError(t, queueDocument(ctx, cat, q, job, 42))

		doc, err := cat.Get(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, int64(42), doc.Size)
		assert.Equal(t, "application/pdf", doc.ContentType)
		n, err := q.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("failed enqueue removes catalog entry", func(t *testing.T) {
		cat := catalog.NewMemory()
		q := queue.NewMemory()
		require.NoError(t, q.Close())

		err := queueDocument(ctx, cat, q, job, 42)
		assert.ErrorIs(t, err, queue.ErrClosed)
		_, err = cat.Get(ctx, "doc-1")
		assert.ErrorIs(t, err, catalog.ErrNotFound)
	})

	t.Run("without catalog", func(t *testing.T) {
		q := queue.NewMemory()
		require.NoError(t, queueDocument(ctx, nil, q, job, 0))
	})
}

func TestQueryCommand(t *testing.T) {
	cfg := offline(t)

	_, err := run(t, "--config", cfg, "query")
	require.Error(t, err)

	// The mock backend echoes the prompt; the store is empty so no sources.
	out, err := run(t, "--config", cfg, "query", "what is stored?")
	require.NoError(t, err)
	assert.Equal(t, "what is stored?\n", out)

	out, err = run(t, "--config", cfg, "query", "--json", "hello")
	require.NoError(t, err)
	assert.Equal(t, "{\"type\":\"token\",\"payload\":\"hello\"}\n{\"type\":\"done\",\"payload\":true}\n", out)
}

func TestReembedCommand(t *testing.T) {
	cfg := offline(t)

	_, err := run(t, "--config", cfg, "reembed", "--max-retries", "0")
	assert.Error(t, err)

	_, err = run(t, "--config", cfg, "reembed")
	assert.NoError(t, err)
}
