package imagecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates the source URL has no index entry.
var ErrNotFound = errors.New("image index entry not found")

// Entry is one image index row.
type Entry struct {
	// SourceURL is the original image URL.
	SourceURL string

	// StoredURL is the public URL of the cached copy. Equals SourceURL for
	// skipped entries.
	StoredURL string

	// StoragePath is the blob storage path. Empty for skipped entries.
	StoragePath string

	// Skipped marks a source that returned an access-denied response.
	// Skipped entries are never re-fetched.
	Skipped bool

	// Timestamp is when the entry was created.
	Timestamp time.Time
}

// Index persists image cache entries in SQLite.
type Index struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

const indexSchema = `
CREATE TABLE IF NOT EXISTS image_index (
	source_url   TEXT PRIMARY KEY,
	stored_url   TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	skipped      INTEGER NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS image_index_created_at ON image_index(created_at);
`

// OpenIndex opens a SQLite image index, creating the schema if needed.
func OpenIndex(path string) (*Index, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("index path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(indexSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Index{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (i *Index) Close() error {
	if i == nil || i.sqlDB == nil {
		return nil
	}
	return i.sqlDB.Close()
}

// Get returns the entry for sourceURL, or ErrNotFound.
func (i *Index) Get(ctx context.Context, sourceURL string) (*Entry, error) {
	row := i.sqlDB.QueryRowContext(ctx,
		`SELECT source_url, stored_url, storage_path, skipped, created_at
		 FROM image_index WHERE source_url = ?`, sourceURL)

	var e Entry
	var skipped int
	var createdAt int64
	if err := row.Scan(&e.SourceURL, &e.StoredURL, &e.StoragePath, &skipped, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query index entry: %w", err)
	}
	e.Skipped = skipped != 0
	e.Timestamp = fromMillis(createdAt)
	return &e, nil
}

// Put inserts or replaces the entry for its source URL.
func (i *Index) Put(ctx context.Context, e Entry) error {
	if strings.TrimSpace(e.SourceURL) == "" {
		return fmt.Errorf("source url is required")
	}
	skipped := 0
	if e.Skipped {
		skipped = 1
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := i.sqlDB.ExecContext(ctx,
		`INSERT INTO image_index (source_url, stored_url, storage_path, skipped, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(source_url) DO UPDATE SET
			stored_url = excluded.stored_url,
			storage_path = excluded.storage_path,
			skipped = excluded.skipped,
			created_at = excluded.created_at`,
		e.SourceURL, e.StoredURL, e.StoragePath, skipped, toMillis(ts))
	if err != nil {
		return fmt.Errorf("upsert index entry: %w", err)
	}
	return nil
}

// Count returns the number of index entries.
func (i *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := i.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM image_index`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count index entries: %w", err)
	}
	return n, nil
}

// Oldest returns up to limit entries ordered by creation time, oldest
// first.
func (i *Index) Oldest(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := i.sqlDB.QueryContext(ctx,
		`SELECT source_url, stored_url, storage_path, skipped, created_at
		 FROM image_index ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query oldest entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var skipped int
		var createdAt int64
		if err := rows.Scan(&e.SourceURL, &e.StoredURL, &e.StoragePath, &skipped, &createdAt); err != nil {
			return nil, fmt.Errorf("scan index entry: %w", err)
		}
		e.Skipped = skipped != 0
		e.Timestamp = fromMillis(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index entries: %w", err)
	}
	return entries, nil
}

// Delete removes the entries for the given source URLs.
func (i *Index) Delete(ctx context.Context, sourceURLs []string) error {
	for _, u := range sourceURLs {
		if _, err := i.sqlDB.ExecContext(ctx, `DELETE FROM image_index WHERE source_url = ?`, u); err != nil {
			return fmt.Errorf("delete index entry: %w", err)
		}
	}
	return nil
}
