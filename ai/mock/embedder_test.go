package mock

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedderBatchMatchesSingle(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder(0)
	require.Equal(t, 384, m.Dimension())

	texts := []string{"alpha", "beta", "", "alpha"}
	batch, err := m.EmbedTexts(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := m.EmbedText(ctx, text)
		require.NoError(t, err)
		assert.InDeltaSlice(t, single, batch[i], 1e-6)
	}
	assert.Equal(t, 5, m.CallCount())
	assert.Equal(t, []int{4}, m.BatchSizes())
}

func TestHashVectorIsUnitLength(t *testing.T) {
	v := HashVector("some text", 64)
	require.Len(t, v, 64)
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-4)
	assert.NotEqual(t, v, HashVector("other text", 64))
}

func TestMockEmbedderInjection(t *testing.T) {
	m := NewMockEmbedder(8)
	boom := errors.New("down")
	m.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) { return nil, boom }

	_, err := m.EmbedTexts(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, boom)

	m.Reset()
	assert.Zero(t, m.CallCount())
	_, err = m.EmbedTexts(context.Background(), []string{"x"})
	assert.NoError(t, err)
}

func TestMockLLM(t *testing.T) {
	ctx := context.Background()

	t.Run("echo", func(t *testing.T) {
		m := NewMockLLM()
		s, err := m.GenerateStream(ctx, "hello there", "sys")
		require.NoError(t, err)
		defer s.Close()

		var got []string
		for {
			d, err := s.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			got = append(got, d)
		}
		assert.Equal(t, []string{"hello", " there"}, got)
		assert.Equal(t, []Call{{Prompt: "hello there", SystemPrompt: "sys"}}, m.Calls())
	})

	t.Run("fail after", func(t *testing.T) {
		boom := errors.New("reset")
		m := NewMockLLM("a", "b", "c").FailAfter(2, boom)
		s, err := m.GenerateStream(ctx, "q", "")
		require.NoError(t, err)
		defer s.Close()

		d, err := s.Recv()
		require.NoError(t, err)
		assert.Equal(t, "a", d)
		d, err = s.Recv()
		require.NoError(t, err)
		assert.Equal(t, "b", d)
		_, err = s.Recv()
		assert.ErrorIs(t, err, boom)
	})
}
