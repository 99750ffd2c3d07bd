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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/ragstream/catalog"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/query"
	"github.com/poiesic/ragstream/queue"
	"github.com/poiesic/ragstream/reembed"
	"github.com/urfave/cli/v2"
)

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("listen") {
		cfg.Listen = c.String("listen")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := openApp(c, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if !c.Bool("no-workers") {
		pipeline, err := app.NewPipeline()
		if err != nil {
			return fmt.Errorf("failed to create pipeline: %w", err)
		}
		if err := pipeline.Start(ctx); err != nil {
			return fmt.Errorf("failed to start pipeline: %w", err)
		}
		defer func() {
			stop()
			pipeline.Wait()
			pipeline.Release()
		}()
	}

	srv, err := app.NewServer()
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.ListenAndServe(ctx, cfg.Listen)
}

func workerCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("workers") {
		cfg.Ingestion.Workers = c.Int("workers")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := openApp(c, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	pipeline, err := app.NewPipeline()
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	if err := pipeline.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	fmt.Fprintf(c.App.ErrWriter, "Running %d ingestion workers; press Ctrl+C to stop\n", pipeline.Size())
	pipeline.Wait()
	return nil
}

func ingestCommand(c *cli.Context) error {
	files := c.Args().Slice()
	if len(files) == 0 {
		return errors.New("at least one file is required")
	}
	documentID := c.String("document-id")
	if documentID != "" && len(files) > 1 {
		return errors.New("--document-id can only be used with a single file")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	app, err := openApp(c, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := c.Context
	for _, file := range files {
		path, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("cannot ingest %s: %w", file, err)
		}

		job := core.IngestionJob{
			DocumentID: documentID,
			Filename:   filepath.Base(path),
			FilePath:   path,
		}
		if job.DocumentID == "" {
			job.DocumentID = uuid.NewString()
		}
		if err := queueDocument(ctx, app.Catalog(), app.Queue(), job, info.Size()); err != nil {
			return fmt.Errorf("failed to queue %s: %w", file, err)
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", job.DocumentID, path)
	}
	return nil
}

// queueDocument records the document in cat, when there is one, and
// enqueues job. The catalog entry is removed again if the enqueue fails.
func queueDocument(ctx context.Context, cat catalog.Catalog, q queue.Queue, job core.IngestionJob, size int64) error {
	if cat != nil {
		doc := &core.Document{
			ID:          job.DocumentID,
			Filename:    job.Filename,
			ContentType: mime.TypeByExtension(filepath.Ext(job.Filename)),
			Size:        size,
			CreatedAt:   time.Now().UTC(),
		}
		if err := cat.Put(ctx, doc); err != nil {
			return err
		}
	}
	if err := q.Enqueue(ctx, job); err != nil {
		if cat != nil {
			err = errors.Join(err, cat.Delete(ctx, job.DocumentID))
		}
		return err
	}
	return nil
}

func queryCommand(c *cli.Context) error {
	question := c.Args().First()
	if question == "" {
		return errors.New("a question is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("top-k") {
		cfg.TopK = c.Int("top-k")
	}
	app, err := openApp(c, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	orch, err := app.NewOrchestrator(query.WithMonitor(nil))
	if err != nil {
		return err
	}

	out := c.App.Writer
	var send query.Sink
	var citations []core.Citation
	var failure string
	if c.Bool("json") {
		enc := json.NewEncoder(out)
		send = func(ev core.StreamEvent) error { return enc.Encode(ev) }
	} else {
		send = func(ev core.StreamEvent) error {
			switch ev.Type {
			case core.EventCitation:
				citations = append(citations, ev.Citation)
			case core.EventToken:
				_, err := fmt.Fprint(out, ev.Text)
				return err
			case core.EventError:
				failure = ev.Text
			case core.EventDone:
				_, err := fmt.Fprintln(out)
				return err
			}
			return nil
		}
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	if err := orch.Stream(ctx, question, send); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if failure != "" {
		return fmt.Errorf("query failed: %s", failure)
	}
	if len(citations) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for i, cit := range citations {
			fmt.Fprintf(out, "  [%d] %s (page %d): %s\n", i+1, cit.Source, cit.Page, cit.Text)
		}
	}
	return nil
}

func deleteCommand(c *cli.Context) error {
	ids := c.Args().Slice()
	if len(ids) == 0 {
		return errors.New("at least one document id is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	app, err := openApp(c, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	for _, id := range ids {
		if err := app.DeleteDocument(c.Context, id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
		fmt.Fprintf(c.App.Writer, "deleted %s\n", id)
	}
	return nil
}

func documentsCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	app, err := openApp(c, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	cat := app.Catalog()
	if cat == nil {
		return errors.New("no document catalog configured")
	}
	docs, err := cat.List(c.Context)
	if err != nil {
		return err
	}
	for _, d := range docs {
		status := "pending"
		if d.Processed {
			status = "processed"
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\t%s\n", d.ID, d.Filename, status, d.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	reembedConfig := reembed.DefaultConfig()
	reembedConfig.BatchSize = c.Int("batch-size")
	reembedConfig.Retry.MaxAttempts = c.Int("max-retries")
	if reembedConfig.BatchSize <= 0 {
		return errors.New("batch-size must be greater than 0")
	}
	if reembedConfig.Retry.MaxAttempts <= 0 {
		return reembed.ErrInvalidMaxAttempts
	}

	app, err := openApp(c, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	reembedder, err := app.NewReembedder(reembedConfig, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("failed to create reembedder: %w", err)
	}

	fmt.Fprintf(c.App.ErrWriter, "Store: %s\n", cfg.Store.Backend)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.Embedding.Model)
	fmt.Fprintln(c.App.ErrWriter)

	if _, err := reembedder.Run(c.Context); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func deadLettersCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	app, err := openApp(c, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	letters, err := app.DeadLetters(c.Context)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		for _, dl := range letters {
			if err := enc.Encode(dl); err != nil {
				return err
			}
		}
		return nil
	}
	for _, dl := range letters {
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\t%s\n",
			dl.FailedAt.Format(time.RFC3339), dl.Job.DocumentID, dl.Job.FilePath, dl.Reason)
	}
	return nil
}
