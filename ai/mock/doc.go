// Package mock provides deterministic implementations of the ai interfaces.
//
// MockEmbedder hashes text into unit vectors so identical text always maps to
// the identical vector, in single and batch form alike. It backs the "hash"
// embedding backend as well as unit tests. MockLLM replays scripted deltas
// and can fail after a given number of them.
//
// # Usage in Tests
//
//	embedder := mock.NewMockEmbedder(384)
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("provider down")
//	}
//
//	llm := mock.NewMockLLM("Hel", "lo")
//	llm.FailAfter(2, errors.New("backend reset"))
//
// Constructors return concrete types so tests can inspect CallCount and
// swap behavior.
package mock
