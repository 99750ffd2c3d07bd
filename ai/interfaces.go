package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in one
	// backend call. The result at index i equals EmbedText(texts[i]).
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the length of every vector this embedder returns.
	Dimension() int
}

// LLMProvider streams a completion from one LLM backend.
// Implementations must be thread-safe for concurrent use.
type LLMProvider interface {
	// GenerateStream starts a completion for prompt under systemPrompt.
	// Deltas are read from the returned Stream until io.EOF or a terminal
	// error. The caller must Close the stream.
	GenerateStream(ctx context.Context, prompt, systemPrompt string) (*Stream, error)

	// Name identifies the backend variant, for example "groq".
	Name() string
}
