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

// Package storage provides the vector storage abstraction for ragstream.
//
// VectorStore decouples the ingestion and query pipelines from any particular
// index. Both pipelines hold the same long-lived store; every implementation
// must be safe for concurrent use by many ingestion workers and query tasks
// at once. No cross-call locking is offered: correctness under concurrent
// writers rests on AddChunks being an idempotent upsert keyed by chunk id.
//
// # Implementations
//
//   - storage/badger: embedded, persistent; brute-force cosine search
//   - storage/memory: in-process, non-persistent
//   - storage/qdrant: remote Qdrant collection over REST
//
// Every implementation runs the shared conformance suite in storage/storagetest.
//
// # Ranking
//
// Search results are ordered by descending cosine similarity. Equal scores are
// ordered by ascending chunk id so results are totally ordered and repeatable.
// Rank implements this order for stores that score in process.
package storage
