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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/ragstream"
	"github.com/poiesic/ragstream/config"
	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "ragstream",
		Usage: "Document ingestion and streaming question answering",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "ragstream.yaml",
				EnvVars: []string{"RAGSTREAM_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Directory for the badger database and the catalog",
				EnvVars: []string{"RAGSTREAM_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "llm-backend",
				Usage:   "LLM backend (openai, groq, gemini, local, mock)",
				EnvVars: []string{"RAGSTREAM_LLM_BACKEND"},
			},
			&cli.StringFlag{
				Name:    "llm-api-key",
				Usage:   "API key for hosted LLM backends",
				EnvVars: []string{"RAGSTREAM_LLM_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "embedding-host",
				Usage:   "Embedding service host URL",
				EnvVars: []string{"RAGSTREAM_EMBEDDING_HOST"},
			},
			&cli.StringFlag{
				Name:    "embedding-api-key",
				Usage:   "API key for the embedding service",
				EnvVars: []string{"RAGSTREAM_EMBEDDING_API_KEY"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API and run ingestion workers",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "Address to listen on (defaults to the configured address)",
					},
					&cli.BoolFlag{
						Name:  "no-workers",
						Usage: "Serve the API without running ingestion workers",
					},
				},
			},
			{
				Name:   "worker",
				Usage:  "Run ingestion workers until interrupted",
				Action: workerCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent workers (defaults to the configured count)",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Queue files for ingestion",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "document-id",
						Usage: "Document id to use; only valid with a single file",
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Ask a question and stream the answer",
				ArgsUsage: "QUESTION",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print raw events as newline-delimited JSON",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of chunks to retrieve (defaults to the configured value)",
					},
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a document's chunks and catalog entry",
				ArgsUsage: "DOCUMENT_ID...",
				Action:    deleteCommand,
			},
			{
				Name:   "documents",
				Usage:  "List catalogued documents",
				Action: documentsCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Re-embed every stored chunk with the configured embedder",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed per call",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per batch",
						Value: 3,
					},
				},
			},
			{
				Name:   "dead-letters",
				Usage:  "List ingestion jobs that failed",
				Action: deadLettersCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print records as newline-delimited JSON",
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// loadConfig reads the config file and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.IsSet("llm-backend") {
		cfg.LLM.Backend = c.String("llm-backend")
	}
	if c.IsSet("llm-api-key") {
		cfg.LLM.APIKey = c.String("llm-api-key")
	}
	if c.IsSet("embedding-host") {
		cfg.Embedding.Host = c.String("embedding-host")
	}
	if c.IsSet("embedding-api-key") {
		cfg.Embedding.APIKey = c.String("embedding-api-key")
	}
	return cfg, nil
}

func openApp(c *cli.Context, cfg *config.Config) (*ragstream.App, error) {
	app, err := ragstream.NewApp(c.Context, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open ragstream: %w", err)
	}
	return app, nil
}
