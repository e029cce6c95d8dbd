package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/hashnote/internal/apperr"
	"github.com/starford/hashnote/internal/models"
)

// ListFilter narrows a note listing. Limit <= 0 returns every match.
type ListFilter struct {
	Tag    string
	Limit  int
	Offset int
}

// CreateNote inserts n and its tag rows. An empty ID is filled with a UUID and
// zero timestamps with the current time.
func (db *DB) CreateNote(ctx context.Context, n *models.Note) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = now
	}
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(nonNil(n.Tags))
	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (id, user_id, title, content, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.Title, n.Content, string(tagsJSON), n.CreatedAt, n.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("store: insert note: %w", err)
	}
	if err := replaceTags(ctx, tx, n); err != nil {
		return err
	}
	return tx.Commit()
}

// GetNote returns the note with id owned by userID.
func (db *DB) GetNote(ctx context.Context, userID, id string) (*models.Note, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, title, content, tags, created_at, updated_at
		FROM notes WHERE id = ? AND user_id = ?
	`, id, userID)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get note: %w", err)
	}
	return n, nil
}

// UpdateNote rewrites n only if the stored content still equals prevContent.
// A lost race is reported as apperr.ErrConflict.
func (db *DB) UpdateNote(ctx context.Context, n *models.Note, prevContent string) error {
	n.UpdatedAt = time.Now().UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	tagsJSON, _ := json.Marshal(nonNil(n.Tags))
	res, err := tx.ExecContext(ctx, `
		UPDATE notes SET title = ?, content = ?, tags = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND content = ?
	`, n.Title, n.Content, string(tagsJSON), n.UpdatedAt, n.ID, n.UserID, prevContent)
	if err != nil {
		return fmt.Errorf("store: update note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update note: %w", err)
	}
	if affected == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM notes WHERE id = ? AND user_id = ?`, n.ID, n.UserID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrNotFound
		}
		return apperr.ErrConflict
	}
	if err := replaceTags(ctx, tx, n); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteNote removes a note and its tag rows.
func (db *DB) DeleteNote(ctx context.Context, userID, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("store: delete note: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperr.ErrNotFound
	}
	_, _ = tx.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, id)
	return tx.Commit()
}

// ListNotes returns the user's notes, newest first, and the total number of
// matches before pagination.
func (db *DB) ListNotes(ctx context.Context, userID string, f ListFilter) ([]models.Note, int, error) {
	where := `n.user_id = ?`
	args := []any{userID}
	if f.Tag != "" {
		where += ` AND EXISTS (SELECT 1 FROM note_tags t WHERE t.note_id = n.id AND t.tag = ?)`
		args = append(args, f.Tag)
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM notes n WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count notes: %w", err)
	}

	query := `SELECT n.id, n.user_id, n.title, n.content, n.tags, n.created_at, n.updated_at
		FROM notes n WHERE ` + where + ` ORDER BY n.created_at DESC, n.id`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, max(f.Offset, 0))
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list notes: %w", err)
	}
	defer rows.Close()

	var out []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: scan note: %w", err)
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*models.Note, error) {
	var (
		n        models.Note
		tagsJSON string
	)
	if err := s.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &tagsJSON, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil || n.Tags == nil {
		n.Tags = []string{}
	}
	return &n, nil
}

// replaceTags rewrites the note_tags rows of n inside tx.
func replaceTags(ctx context.Context, tx *sql.Tx, n *models.Note) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, n.ID); err != nil {
		return fmt.Errorf("store: clear tags: %w", err)
	}
	if len(n.Tags) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO note_tags (note_id, user_id, tag) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare tag insert: %w", err)
	}
	defer stmt.Close()
	for _, tag := range n.Tags {
		if _, err := stmt.ExecContext(ctx, n.ID, n.UserID, tag); err != nil {
			return fmt.Errorf("store: insert tag: %w", err)
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
