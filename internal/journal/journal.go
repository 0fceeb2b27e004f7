// Package journal records every capture attempt in SQLite so operators
// can see what the service has been doing and retrieve recent results.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/domsnap/internal/dbopen"
	"github.com/hazyhaar/domsnap/internal/idgen"
)

// Capture statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Schema is the capture journal schema.
const Schema = `
CREATE TABLE IF NOT EXISTS captures (
    id           TEXT PRIMARY KEY,
    url          TEXT NOT NULL,
    format       TEXT NOT NULL,
    status       TEXT NOT NULL,
    error        TEXT NOT NULL DEFAULT '',
    width        INTEGER NOT NULL,
    height       INTEGER NOT NULL,
    full_page    INTEGER NOT NULL DEFAULT 1,
    byte_size    INTEGER NOT NULL DEFAULT 0,
    overlays     INTEGER NOT NULL DEFAULT 0,
    duration_ms  INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_captures_time ON captures(created_at DESC);
`

// Entry is one capture attempt, successful or not.
type Entry struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Format     string `json:"format"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FullPage   bool   `json:"full_page"`
	ByteSize   int    `json:"byte_size"`
	Overlays   int    `json:"overlays"`
	DurationMs int64  `json:"duration_ms"`
	CreatedAt  int64  `json:"created_at"`
}

// Journal wraps the captures database.
type Journal struct {
	db    *sql.DB
	newID idgen.Generator
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	return New(db, nil), nil
}

// New wraps an already-opened database. A nil gen uses "cap_"-prefixed
// UUIDv7 identifiers.
func New(db *sql.DB, gen idgen.Generator) *Journal {
	if gen == nil {
		gen = idgen.Prefixed("cap_", idgen.UUIDv7())
	}
	return &Journal{db: db, newID: gen}
}

// Record inserts one entry, assigning its ID and timestamp when unset,
// and returns the ID.
func (j *Journal) Record(ctx context.Context, e *Entry) (string, error) {
	if e.ID == "" {
		e.ID = j.newID()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}

	fullPage := 0
	if e.FullPage {
		fullPage = 1
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO captures (id, url, format, status, error, width, height,
		full_page, byte_size, overlays, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.URL, e.Format, e.Status, e.Error, e.Width, e.Height,
		fullPage, e.ByteSize, e.Overlays, e.DurationMs, e.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("journal: record: %w", err)
	}
	return e.ID, nil
}

// Recent returns the newest entries, most recent first. Limit defaults
// to 20 and is capped at 100.
func (j *Journal) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, url, format, status, error, width, height,
		full_page, byte_size, overlays, duration_ms, created_at
		FROM captures ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var result []*Entry
	for rows.Next() {
		var e Entry
		var fullPage int
		if err := rows.Scan(&e.ID, &e.URL, &e.Format, &e.Status, &e.Error,
			&e.Width, &e.Height, &fullPage, &e.ByteSize, &e.Overlays,
			&e.DurationMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.FullPage = fullPage != 0
		result = append(result, &e)
	}
	return result, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
