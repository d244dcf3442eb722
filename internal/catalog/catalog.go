// Package catalog records ingested sources in a local SQLite database so they
// can be listed later. The vector index stays the only store of content.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Source kinds.
const (
	KindFile = "file"
	KindText = "text"
	KindURL  = "url"
)

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var ErrInvalidSource = errors.New("invalid source")

// Source describes one ingestion.
type Source struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Catalog is a SQLite-backed list of sources. It is safe for concurrent use.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates the catalog database at path.
func Open(path string) (*Catalog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	// one writer at a time keeps SQLite from returning SQLITE_BUSY
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sources (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			chunk_count INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sources_created_at ON sources (created_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Add records a source. CreatedAt defaults to now.
func (c *Catalog) Add(ctx context.Context, s Source) error {
	if s.ID == "" || s.Kind == "" {
		return fmt.Errorf("%w: id and kind are required", ErrInvalidSource)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO sources (id, kind, title, chunk_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Kind, s.Title, s.ChunkCount, s.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert source %s: %w", s.ID, err)
	}
	return nil
}

// List returns all sources, newest first.
func (c *Catalog) List(ctx context.Context) ([]Source, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, kind, title, chunk_count, created_at
		 FROM sources
		 ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	sources := []Source{}
	for rows.Next() {
		var (
			s         Source
			createdAt string
		)
		if err := rows.Scan(&s.ID, &s.Kind, &s.Title, &s.ChunkCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		s.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for %s: %w", s.ID, err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sources, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}
