package extract

import (
	"context"
	"os"
	"strings"
)

// TextExtractor reads a file as UTF-8, dropping invalid byte sequences.
type TextExtractor struct{}

var _ Extractor = TextExtractor{}

func (TextExtractor) Extract(_ context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Result{Text: strings.ToValidUTF8(string(data), "")}, nil
}
