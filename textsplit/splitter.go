package textsplit

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// DefaultSeparators lists cut points from the strongest boundary to the
// weakest. Each inner slice is one level; separators within a level rank equally.
var DefaultSeparators = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "! ", "? "},
	{" "},
}

// Span is a chunk's half-open rune range [Start, End) within the input.
type Span struct {
	Start int
	End   int
}

// Splitter cuts text into overlapping chunks. It is immutable and safe for
// concurrent use.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	levels       [][][]rune
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithSeparators replaces the boundary levels, strongest first.
func WithSeparators(levels [][]string) Option {
	return func(s *Splitter) {
		s.levels = compileLevels(levels)
	}
}

// New creates a Splitter.
func New(chunkSize, chunkOverlap int, opts ...Option) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, ErrInvalidChunkOverlap
	}
	s := &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		levels:       compileLevels(DefaultSeparators),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ChunkSize returns the maximum chunk length in runes.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// ChunkOverlap returns the overlap between adjacent chunks in runes.
func (s *Splitter) ChunkOverlap() int { return s.chunkOverlap }

// SplitText returns the chunks of text in order.
func (s *Splitter) SplitText(text string) []string {
	runes := []rune(text)
	spans := s.split(runes)
	if len(spans) == 1 {
		// Unmodified input, including any invalid UTF-8.
		return []string{text}
	}
	chunks := make([]string, len(spans))
	for i, sp := range spans {
		chunks[i] = string(runes[sp.Start:sp.End])
	}
	return chunks
}

// Split returns the rune spans of the chunks of text in order.
func (s *Splitter) Split(text string) []Span {
	return s.split([]rune(text))
}

func (s *Splitter) split(runes []rune) []Span {
	n := len(runes)
	if n == 0 {
		return nil
	}

	var spans []Span
	start := 0
	for {
		if n-start <= s.chunkSize {
			spans = append(spans, Span{Start: start, End: n})
			return spans
		}
		// The next chunk starts chunkOverlap runes before this one ends, so
		// every cut must land past start+chunkOverlap to make progress.
		end := s.cut(runes, start, start+s.chunkOverlap+1, start+s.chunkSize)
		spans = append(spans, Span{Start: start, End: end})
		start = end - s.chunkOverlap
	}
}

// cut picks the end of the chunk beginning at start: the last position in
// [lo, hi] directly after a separator of the strongest level that has one,
// or hi when no level fits.
func (s *Splitter) cut(runes []rune, start, lo, hi int) int {
	for _, level := range s.levels {
		for p := hi; p >= lo; p-- {
			for _, sep := range level {
				if endsWith(runes, start, p, sep) {
					return p
				}
			}
		}
	}
	return hi
}

func endsWith(runes []rune, start, p int, sep []rune) bool {
	if len(sep) == 0 || p-len(sep) < start {
		return false
	}
	for i, r := range sep {
		if runes[p-len(sep)+i] != r {
			return false
		}
	}
	return true
}

func compileLevels(levels [][]string) [][][]rune {
	compiled := make([][][]rune, 0, len(levels))
	for _, level := range levels {
		seps := make([][]rune, 0, len(level))
		for _, sep := range level {
			if sep != "" {
				seps = append(seps, []rune(sep))
			}
		}
		if len(seps) > 0 {
			compiled = append(compiled, seps)
		}
	}
	return compiled
}
