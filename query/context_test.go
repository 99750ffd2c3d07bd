package query

import (
	"strings"
	"testing"

	"github.com/poiesic/ragstream/core"
	"github.com/stretchr/testify/assert"
)

func hit(filename, content string) *core.ScoredChunk {
	md := map[string]string{}
	if filename != "" {
		md[core.MetaFilename] = filename
	}
	return &core.ScoredChunk{Chunk: &core.Chunk{ID: content, Content: content, Metadata: md}}
}

func TestBuildContext(t *testing.T) {
	tests := []struct {
		name string
		hits []*core.ScoredChunk
		want string
	}{
		{name: "no hits", want: ""},
		{name: "one hit", hits: []*core.ScoredChunk{hit("a.pdf", "X is great")}, want: "Source 1 (a.pdf): X is great"},
		{
			name: "numbered in order",
			hits: []*core.ScoredChunk{hit("a.txt", "first"), hit("", "second")},
			want: "Source 1 (a.txt): first\n\nSource 2 (unknown): second",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildContext(tt.hits))
		})
	}
}

func TestSystemPrompt(t *testing.T) {
	got := SystemPrompt("Source 1 (a.txt): hi")
	assert.Equal(t,
		"You are a helpful AI assistant. Use the following context to answer the user's question.\n\nContext:\nSource 1 (a.txt): hi",
		got)
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"short", "X is great", "X is great..."},
		{"empty", "", "..."},
		{"exactly fifty", strings.Repeat("a", 50), strings.Repeat("a", 50) + "..."},
		{"long", strings.Repeat("b", 80), strings.Repeat("b", 50) + "..."},
		{"multibyte", strings.Repeat("é", 60), strings.Repeat("é", 50) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Excerpt(tt.content))
		})
	}
}

func TestNewCitation(t *testing.T) {
	c := &core.Chunk{
		Content:  "X is great",
		Metadata: map[string]string{core.MetaFilename: "a.pdf", core.MetaPage: "2"},
	}
	assert.Equal(t, core.Citation{Source: "a.pdf", Page: 2, Text: "X is great..."}, NewCitation(c))

	bare := &core.Chunk{Content: "plain"}
	assert.Equal(t, core.Citation{Source: "unknown", Page: 1, Text: "plain..."}, NewCitation(bare))
}
