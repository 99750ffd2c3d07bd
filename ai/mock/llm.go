package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/ragstream/ai"
)

// Call records one GenerateStream invocation.
type Call struct {
	Prompt       string
	SystemPrompt string
}

// MockLLM is a scripted ai.LLMProvider. With no script it echoes the
// prompt back one word at a time.
type MockLLM struct {
	// GenerateStreamFunc replaces the scripted behavior if set.
	GenerateStreamFunc func(ctx context.Context, prompt, systemPrompt string) (*ai.Stream, error)

	deltas    []string
	failAfter int
	failErr   error
	calls     []Call
	mu        sync.Mutex
}

var _ ai.LLMProvider = (*MockLLM)(nil)

// NewMockLLM returns a provider that streams deltas for every prompt.
func NewMockLLM(deltas ...string) *MockLLM {
	return &MockLLM{deltas: deltas, failAfter: -1}
}

// FailAfter makes the stream fail with err once n deltas have been sent.
func (m *MockLLM) FailAfter(n int, err error) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.failErr = err
	return m
}

// Name returns "mock".
func (m *MockLLM) Name() string { return ai.LLMMock }

// GenerateStream replays the script.
func (m *MockLLM) GenerateStream(ctx context.Context, prompt, systemPrompt string) (*ai.Stream, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Prompt: prompt, SystemPrompt: systemPrompt})
	deltas, failAfter, failErr := m.deltas, m.failAfter, m.failErr
	m.mu.Unlock()

	if m.GenerateStreamFunc != nil {
		return m.GenerateStreamFunc(ctx, prompt, systemPrompt)
	}
	if len(deltas) == 0 {
		deltas = echo(prompt)
	}
	if failAfter >= 0 && failAfter < len(deltas) {
		deltas = deltas[:failAfter]
	}
	var err error
	if failAfter >= 0 {
		err = failErr
	}
	return ai.StaticStream(ctx, deltas, err), nil
}

// Calls returns every recorded invocation.
func (m *MockLLM) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

func echo(prompt string) []string {
	words := strings.Fields(prompt)
	out := make([]string, len(words))
	for i, w := range words {
		if i > 0 {
			w = " " + w
		}
		out[i] = w
	}
	return out
}
