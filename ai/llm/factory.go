package llm

import (
	"context"
	"fmt"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/ai/mock"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Default models and endpoints per backend.
const (
	DefaultOpenAIModel = "gpt-4o"
	DefaultGroqModel   = "llama-3.3-70b-versatile"
	DefaultGeminiModel = "gemini-pro"
	DefaultLocalModel  = "llama3"

	GroqBaseURL         = "https://api.groq.com/openai/v1"
	DefaultLocalBaseURL = "http://localhost:11434"
)

// New constructs the backend selected by config.LLMBackend.
func New(ctx context.Context, config *ai.Config, opts ...Option) (ai.LLMProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.LLMBackend {
	case ai.LLMOpenAI:
		return newOpenAICompatible(ai.LLMOpenAI, config, DefaultOpenAIModel, "", opts)
	case ai.LLMGroq:
		return newOpenAICompatible(ai.LLMGroq, config, DefaultGroqModel, GroqBaseURL, opts)
	case ai.LLMGemini:
		model, err := googleai.New(ctx,
			googleai.WithAPIKey(config.LLMAPIKey),
			googleai.WithDefaultModel(orDefault(config.LLMModel, DefaultGeminiModel)),
		)
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		return Wrap(ai.LLMGemini, model, append([]Option{WithSystemFolding()}, opts...)...), nil
	case ai.LLMLocal:
		model, err := ollama.New(
			ollama.WithServerURL(orDefault(config.LLMHost, DefaultLocalBaseURL)),
			ollama.WithModel(orDefault(config.LLMModel, DefaultLocalModel)),
		)
		if err != nil {
			return nil, fmt.Errorf("local: %w", err)
		}
		return Wrap(ai.LLMLocal, model, opts...), nil
	case ai.LLMMock:
		return mock.NewMockLLM(), nil
	}
	return nil, fmt.Errorf("llm: unsupported backend %q", config.LLMBackend)
}

func newOpenAICompatible(name string, config *ai.Config, defaultModel, defaultURL string, opts []Option) (ai.LLMProvider, error) {
	clientOpts := []openai.Option{
		openai.WithToken(config.LLMAPIKey),
		openai.WithModel(orDefault(config.LLMModel, defaultModel)),
	}
	if baseURL := orDefault(config.LLMHost, defaultURL); baseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(baseURL))
	}
	model, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return Wrap(name, model, opts...), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
