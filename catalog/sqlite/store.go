package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/poiesic/ragstream/catalog"
	"github.com/poiesic/ragstream/catalog/sqlite/migrations"
	"github.com/poiesic/ragstream/core"
)

// Store is a catalog.Catalog backed by a SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

var _ catalog.Catalog = (*Store)(nil)

// Open opens or creates the catalog database at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating catalog directory: %w", err)
		}
	}

	// WAL lets the query server read while a worker writes.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Put(ctx context.Context, doc *core.Document) error {
	if doc.ID == "" {
		return core.ErrEmptyDocumentID
	}
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, content_type, size, metadata, created_at, processed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			content_type = excluded.content_type,
			size = excluded.size,
			metadata = excluded.metadata,
			created_at = excluded.created_at,
			processed = excluded.processed
	`, doc.ID, doc.Filename, doc.ContentType, doc.Size, string(metadataJSON),
		createdAt.UTC().Format(time.RFC3339Nano), doc.Processed)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

const selectDocument = `SELECT id, filename, content_type, size, metadata, created_at, processed FROM documents`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*core.Document, error) {
	var (
		doc          core.Document
		metadataJSON string
		createdAt    string
	)
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.ContentType, &doc.Size,
		&metadataJSON, &createdAt, &doc.Processed); err != nil {
		return nil, err
	}
	if metadataJSON != "" && metadataJSON != "null" {
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	doc.CreatedAt = t
	return &doc, nil
}

func (s *Store) Get(ctx context.Context, id string) (*core.Document, error) {
	row := s.db.QueryRowContext(ctx, selectDocument+` WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return doc, nil
}

func (s *Store) List(ctx context.Context) ([]*core.Document, error) {
	rows, err := s.db.QueryContext(ctx, selectDocument+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []*core.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) MarkProcessed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET processed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("marking document processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}
