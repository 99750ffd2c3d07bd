package openai

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/poiesic/ragstream/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddingServer answers /v1/embeddings with dim-length vectors derived
// from each input string.
func fakeEmbeddingServer(t *testing.T, dim int, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		requests.Add(1)
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		for i, in := range req.Input {
			h := fnv.New32a()
			h.Write([]byte(in))
			seed := float32(h.Sum32()%1000) / 1000
			vec := make([]float32, dim)
			for j := range vec {
				vec[j] = seed + float32(j)
			}
			data[i] = item{Object: "embedding", Embedding: vec, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedderBatchMatchesSingle(t *testing.T) {
	var requests atomic.Int32
	srv := fakeEmbeddingServer(t, 4, &requests)

	e, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(srv.URL), ai.WithDimension(4)))
	require.NoError(t, err)
	assert.Equal(t, 4, e.Dimension())

	ctx := context.Background()
	texts := []string{"first chunk", "second chunk", "third chunk"}
	batch, err := e.EmbedTexts(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, int32(1), requests.Load(), "batch must be a single request")

	for i, text := range texts {
		single, err := e.EmbedText(ctx, text)
		require.NoError(t, err)
		assert.InDeltaSlice(t, batch[i], single, 1e-6)
	}
}

func TestEmbedderDimensionMismatch(t *testing.T) {
	var requests atomic.Int32
	srv := fakeEmbeddingServer(t, 3, &requests)

	e, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(srv.URL), ai.WithDimension(384)))
	require.NoError(t, err)

	_, err = e.EmbedText(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestEmbedderEmptyBatch(t *testing.T) {
	var requests atomic.Int32
	srv := fakeEmbeddingServer(t, 4, &requests)

	e, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(srv.URL), ai.WithDimension(4)))
	require.NoError(t, err)

	vectors, err := e.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Zero(t, requests.Load())
}

func TestNewEmbedderRejectsInvalidConfig(t *testing.T) {
	_, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingModel("")))
	assert.Error(t, err)
}
