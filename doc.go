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

// Package ragstream wires a retrieval-augmented generation service
// together from its parts.
//
// Documents are queued as ingestion jobs, split into overlapping chunks,
// embedded and stored in a vector store. Queries are embedded, matched
// against the store and answered by an LLM whose output is streamed back
// as citation, token, error and done events.
//
// App builds the configured store, queue, catalog, embedder and LLM once
// per process:
//
//	cfg, _ := config.Load("ragstream.yaml")
//	app, err := ragstream.NewApp(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer app.Close()
//
//	pipeline, _ := app.NewPipeline()
//	pipeline.Start(ctx)
package ragstream
