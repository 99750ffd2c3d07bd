package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/core"
	"github.com/tmc/langchaingo/llms"
)

// Provider adapts a langchaingo chat model to ai.LLMProvider.
type Provider struct {
	name       string
	model      llms.Model
	foldSystem bool
	logger     *slog.Logger
}

var _ ai.LLMProvider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithSystemFolding sends the system prompt inside the user turn as
// "System: ...\nUser: ..." for backends without a system role.
func WithSystemFolding() Option {
	return func(p *Provider) {
		p.foldSystem = true
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Wrap returns a Provider streaming from model under the given name.
func Wrap(name string, model llms.Model, opts ...Option) *Provider {
	p := &Provider{
		name:   name,
		model:  model,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "llm", "backend", name)
	return p
}

// Name returns the backend variant.
func (p *Provider) Name() string {
	return p.name
}

// GenerateStream starts a streaming completion. The request runs in the
// stream's producer goroutine; closing the stream cancels it.
func (p *Provider) GenerateStream(ctx context.Context, prompt, systemPrompt string) (*ai.Stream, error) {
	messages := p.messages(prompt, systemPrompt)
	p.logger.Debug("starting completion", "prompt_length", len(prompt), "system_length", len(systemPrompt))

	return ai.NewStream(ctx, func(ctx context.Context, emit func(string) error) error {
		_, err := p.model.GenerateContent(ctx, messages,
			llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
				if len(chunk) == 0 {
					return nil
				}
				return emit(string(chunk))
			}),
		)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			p.logger.Error("completion failed", "err", err)
			return fmt.Errorf("%w: %s: %w", core.ErrGeneration, p.name, err)
		}
		return nil
	}), nil
}

func (p *Provider) messages(prompt, systemPrompt string) []llms.MessageContent {
	if systemPrompt == "" {
		return []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}
	}
	if p.foldSystem {
		return []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeHuman, "System: "+systemPrompt+"\nUser: "+prompt),
		}
	}
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
}
