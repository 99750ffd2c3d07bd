package query

import (
	"fmt"
	"strings"

	"github.com/poiesic/ragstream/core"
)

const (
	excerptRunes = 50
	ellipsis     = "..."

	systemPromptTemplate = "You are a helpful AI assistant. Use the following context to answer the user's question.\n\nContext:\n%s"
)

// BuildContext renders hits as numbered source blocks separated by blank
// lines, in retrieval order.
func BuildContext(hits []*core.ScoredChunk) string {
	blocks := make([]string, len(hits))
	for i, hit := range hits {
		blocks[i] = fmt.Sprintf("Source %d (%s): %s", i+1, hit.Chunk.Filename(), hit.Chunk.Content)
	}
	return strings.Join(blocks, "\n\n")
}

// SystemPrompt wraps the retrieval context in the answering instructions.
func SystemPrompt(context string) string {
	return fmt.Sprintf(systemPromptTemplate, context)
}

// Excerpt returns the first 50 runes of content followed by an ellipsis.
// The ellipsis is always appended.
func Excerpt(content string) string {
	runes := []rune(content)
	if len(runes) > excerptRunes {
		runes = runes[:excerptRunes]
	}
	return string(runes) + ellipsis
}

// NewCitation describes chunk for the client.
func NewCitation(chunk *core.Chunk) core.Citation {
	return core.Citation{
		Source: chunk.Filename(),
		Page:   chunk.Page(),
		Text:   Excerpt(chunk.Content),
	}
}
