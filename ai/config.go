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

package ai

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Embedding backends.
const (
	// EmbeddingOpenAI calls an OpenAI-compatible /embeddings endpoint.
	EmbeddingOpenAI = "openai"
	// EmbeddingHash derives vectors from a text hash; for tests and offline use.
	EmbeddingHash = "hash"
)

// LLM backends.
const (
	LLMOpenAI = "openai"
	LLMGroq   = "groq"
	LLMGemini = "gemini"
	LLMLocal  = "local"
	LLMMock   = "mock"
)

// DefaultDimension matches all-MiniLM-L6-v2.
const DefaultDimension = 384

var (
	embeddingBackends = []string{EmbeddingOpenAI, EmbeddingHash}
	llmBackends       = []string{LLMOpenAI, LLMGroq, LLMGemini, LLMLocal, LLMMock}
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingBackend selects the embedder implementation.
	// Default: "openai"
	EmbeddingBackend string

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for a local OpenAI-compatible server
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "all-minilm", "text-embedding-3-small"
	EmbeddingModel string

	// EmbeddingAPIKey authenticates against hosted embedding APIs.
	// Local servers accept any value.
	EmbeddingAPIKey string

	// Dimension is the vector length the embedding model produces.
	// Default: 384
	Dimension int

	// LLMBackend selects the chat backend: openai, groq, gemini, local or mock.
	// Default: "local"
	LLMBackend string

	// LLMModel overrides the backend's default model.
	LLMModel string

	// LLMHost overrides the backend's default base URL.
	LLMHost string

	// LLMAPIKey authenticates against hosted chat APIs.
	LLMAPIKey string
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingBackend sets the embedder implementation.
func WithEmbeddingBackend(backend string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingBackend = backend
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithEmbeddingAPIKey sets the embedding service API key.
func WithEmbeddingAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingAPIKey = key
	}
}

// WithDimension sets the expected embedding dimension.
func WithDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.Dimension = dim
	}
}

// WithLLMBackend sets the chat backend.
func WithLLMBackend(backend string) ConfigOption {
	return func(c *Config) {
		c.LLMBackend = backend
	}
}

// WithLLMModel overrides the chat model.
func WithLLMModel(model string) ConfigOption {
	return func(c *Config) {
		c.LLMModel = model
	}
}

// WithLLMHost overrides the chat backend base URL.
func WithLLMHost(host string) ConfigOption {
	return func(c *Config) {
		c.LLMHost = host
	}
}

// WithLLMAPIKey sets the chat backend API key.
func WithLLMAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.LLMAPIKey = key
	}
}

// DefaultConfig returns a Config for a local Ollama server serving both
// all-minilm embeddings and llama3 chat.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingBackend: EmbeddingOpenAI,
		EmbeddingHost:    "http://localhost:11434/v1",
		EmbeddingModel:   "all-minilm",
		EmbeddingAPIKey:  "none",
		Dimension:        DefaultDimension,
		LLMBackend:       LLMLocal,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithLLMBackend(LLMGroq),
//	    WithLLMAPIKey(os.Getenv("GROQ_API_KEY")),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to the embedding host if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.EmbeddingBackend = strings.ToLower(strings.TrimSpace(c.EmbeddingBackend))
	c.LLMBackend = strings.ToLower(strings.TrimSpace(c.LLMBackend))
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/") + "/v1"
	}
	if c.EmbeddingAPIKey == "" {
		c.EmbeddingAPIKey = "none"
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if !slices.Contains(embeddingBackends, c.EmbeddingBackend) {
		return fmt.Errorf("ai config: unknown embedding backend %q", c.EmbeddingBackend)
	}
	if c.EmbeddingBackend == EmbeddingOpenAI {
		if c.EmbeddingHost == "" {
			return errors.New("ai config: EmbeddingHost is required")
		}
		if c.EmbeddingModel == "" {
			return errors.New("ai config: EmbeddingModel is required")
		}
	}
	if c.Dimension <= 0 {
		return errors.New("ai config: Dimension must be greater than 0")
	}
	if !slices.Contains(llmBackends, c.LLMBackend) {
		return fmt.Errorf("ai config: unknown LLM backend %q", c.LLMBackend)
	}
	switch c.LLMBackend {
	case LLMOpenAI, LLMGroq, LLMGemini:
		if c.LLMAPIKey == "" {
			return fmt.Errorf("ai config: LLMAPIKey is required for %s", c.LLMBackend)
		}
	}
	return nil
}
