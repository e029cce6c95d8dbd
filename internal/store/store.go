// Package store persists notes and tag pages in SQLite. Note content is the
// source of truth; the tags column and the note_tags table are derived caches.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/hashnote/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notes_user_created ON notes(user_id, created_at);

CREATE TABLE IF NOT EXISTS note_tags (
	note_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	tag     TEXT NOT NULL,
	UNIQUE(note_id, tag)
);

CREATE INDEX IF NOT EXISTS idx_note_tags_user_tag ON note_tags(user_id, tag);

CREATE TABLE IF NOT EXISTS tag_pages (
	user_id     TEXT NOT NULL,
	tag         TEXT NOT NULL,
	goal        TEXT NOT NULL DEFAULT '',
	target_days INTEGER NOT NULL DEFAULT 0,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, tag)
);
`

// NoteStore is the persistence contract used by the note service.
// Consumers should depend on it rather than on *DB.
type NoteStore interface {
	CreateNote(ctx context.Context, n *models.Note) error
	GetNote(ctx context.Context, userID, id string) (*models.Note, error)
	UpdateNote(ctx context.Context, n *models.Note, prevContent string) error
	DeleteNote(ctx context.Context, userID, id string) error
	ListNotes(ctx context.Context, userID string, f ListFilter) ([]models.Note, int, error)
	TagCounts(ctx context.Context, userID string) ([]models.TagCount, error)
	TagTimes(ctx context.Context, userID, tag string) ([]time.Time, error)
	GetTagPage(ctx context.Context, userID, tag string) (*models.TagPage, error)
	UpsertTagPage(ctx context.Context, p *models.TagPage) error
	Close() error
}

// Verify *DB satisfies NoteStore at compile time.
var _ NoteStore = (*DB)(nil)

// DB wraps a sql.DB with note-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
