// Package llm implements ai.LLMProvider on top of langchaingo chat models.
//
// One backend variant is chosen at startup by New from ai.Config.LLMBackend:
//
//   - openai: OpenAI chat completions (default model gpt-4o)
//   - groq: Groq's OpenAI-compatible endpoint (default model llama-3.3-70b-versatile)
//   - gemini: Google AI (default model gemini-pro); the system prompt is folded
//     into the user turn
//   - local: an Ollama server (default http://localhost:11434, model llama3)
//   - mock: scripted echo from ai/mock
//
// Each variant streams through the same adapter, which forwards langchaingo's
// streaming callback into an ai.Stream.
package llm
