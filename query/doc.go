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

// Package query answers questions from the vector store with a streamed,
// cited completion.
//
// The Orchestrator embeds the question, retrieves the top-k chunks,
// emits one citation event per chunk, then forwards the LLM's deltas as
// token events. Every query ends with exactly one done event, whether
// retrieval found nothing, the backend failed, or generation succeeded.
package query
