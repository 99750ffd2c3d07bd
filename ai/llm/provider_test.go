package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/ai/mock"
	"github.com/poiesic/ragstream/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel streams chunks through the langchaingo streaming callback.
type fakeModel struct {
	chunks []string
	err    error
	block  bool

	mu       sync.Mutex
	messages []llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	f.messages = messages
	f.mu.Unlock()

	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	for _, c := range f.chunks {
		if err := opts.StreamingFunc(ctx, []byte(c)); err != nil {
			return nil, err
		}
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: strings.Join(f.chunks, "")}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func (f *fakeModel) sent() []llms.MessageContent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages
}

func collect(t *testing.T, s *ai.Stream) ([]string, error) {
	t.Helper()
	var out []string
	for {
		d, err := s.Recv()
		if err != nil {
			return out, err
		}
		out = append(out, d)
	}
}

func TestProviderStreamsDeltas(t *testing.T) {
	model := &fakeModel{chunks: []string{"Hel", "", "lo"}}
	p := Wrap("openai", model)
	assert.Equal(t, "openai", p.Name())

	s, err := p.GenerateStream(context.Background(), "question", "be brief")
	require.NoError(t, err)
	defer s.Close()

	deltas, err := collect(t, s)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"Hel", "lo"}, deltas)
	assert.Equal(t, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, "be brief"),
		llms.TextParts(llms.ChatMessageTypeHuman, "question"),
	}, model.sent())
}

func TestProviderPropagatesBackendFailure(t *testing.T) {
	boom := errors.New("429 rate limited")
	p := Wrap("groq", &fakeModel{chunks: []string{"a", "b"}, err: boom})

	s, err := p.GenerateStream(context.Background(), "q", "")
	require.NoError(t, err)
	defer s.Close()

	deltas, err := collect(t, s)
	assert.Equal(t, []string{"a", "b"}, deltas)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "groq")
	assert.ErrorIs(t, err, core.ErrGeneration)
}

func TestProviderSystemFolding(t *testing.T) {
	model := &fakeModel{chunks: []string{"ok"}}
	p := Wrap("gemini", model, WithSystemFolding())

	s, err := p.GenerateStream(context.Background(), "What is X?", "Context here")
	require.NoError(t, err)
	defer s.Close()
	_, _ = collect(t, s)

	assert.Equal(t, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, "System: Context here\nUser: What is X?"),
	}, model.sent())
}

func TestProviderCloseCancelsRequest(t *testing.T) {
	p := Wrap("local", &fakeModel{chunks: []string{"first"}, block: true})

	s, err := p.GenerateStream(context.Background(), "q", "")
	require.NoError(t, err)

	d, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, "first", d)
	require.NoError(t, s.Close())

	_, err = s.Recv()
	assert.ErrorIs(t, err, ai.ErrStreamClosed)
}

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		opts []ai.ConfigOption
		want string
	}{
		{"local", []ai.ConfigOption{ai.WithLLMBackend(ai.LLMLocal)}, ai.LLMLocal},
		{"openai", []ai.ConfigOption{ai.WithLLMBackend(ai.LLMOpenAI), ai.WithLLMAPIKey("sk-test")}, ai.LLMOpenAI},
		{"groq", []ai.ConfigOption{ai.WithLLMBackend(ai.LLMGroq), ai.WithLLMAPIKey("gsk-test")}, ai.LLMGroq},
		{"mock", []ai.ConfigOption{ai.WithLLMBackend(ai.LLMMock)}, ai.LLMMock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(ctx, ai.NewConfig(tt.opts...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}

	t.Run("mock is scripted", func(t *testing.T) {
		p, err := New(ctx, ai.NewConfig(ai.WithLLMBackend(ai.LLMMock)))
		require.NoError(t, err)
		assert.IsType(t, &mock.MockLLM{}, p)
	})

	t.Run("hosted without key", func(t *testing.T) {
		_, err := New(ctx, ai.NewConfig(ai.WithLLMBackend(ai.LLMGroq)))
		assert.Error(t, err)
	})
}
