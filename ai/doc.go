// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ai provides abstractions for the model services used by ragstream.
//
// Two capability interfaces are defined here:
//
//   - Embedder: turns text into fixed-dimension vectors, singly or in batches
//   - LLMProvider: streams a chat completion as a sequence of text deltas
//
// Completions are delivered through Stream, a channel-backed producer and
// consumer pair. The backend writes deltas from its own goroutine; the caller
// reads them with Recv until io.EOF or a terminal error, and Close cancels the
// backend request.
//
// # Implementation Packages
//
//   - ai/openai: embeddings from OpenAI-compatible APIs (Ollama, vLLM, OpenAI)
//   - ai/llm: chat backends (openai, groq, gemini, local) and the startup factory
//   - ai/mock: deterministic embedder and scripted LLM for tests and offline runs
//
// Public constructors return the interface types. Mock constructors return
// concrete types so tests can inject behavior and inspect call counts.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithLLMBackend(ai.LLMGroq), ai.WithLLMAPIKey(key))
//	provider, err := llm.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stream, err := provider.GenerateStream(ctx, "What is X?", systemPrompt)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stream.Close()
//	for {
//	    delta, err := stream.Recv()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
package ai
