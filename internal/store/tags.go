package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/hashnote/internal/models"
)

// TagCounts returns how many notes carry each tag, most used first.
func (db *DB) TagCounts(ctx context.Context, userID string) ([]models.TagCount, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT tag, count(*) AS c FROM note_tags
		WHERE user_id = ?
		GROUP BY tag
		ORDER BY c DESC, tag ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: tag counts: %w", err)
	}
	defer rows.Close()

	out := []models.TagCount{}
	for rows.Next() {
		var tc models.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// TagTimes returns the creation time of every note carrying tag.
func (db *DB) TagTimes(ctx context.Context, userID, tag string) ([]time.Time, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT n.created_at FROM notes n
		JOIN note_tags t ON t.note_id = n.id
		WHERE t.user_id = ? AND t.tag = ?
		ORDER BY n.created_at
	`, userID, tag)
	if err != nil {
		return nil, fmt.Errorf("store: tag times: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// GetTagPage returns the page settings for tag, or an empty page when none
// were saved.
func (db *DB) GetTagPage(ctx context.Context, userID, tag string) (*models.TagPage, error) {
	p := &models.TagPage{UserID: userID, Tag: tag}
	err := db.conn.QueryRowContext(ctx, `
		SELECT goal, target_days, updated_at FROM tag_pages WHERE user_id = ? AND tag = ?
	`, userID, tag).Scan(&p.Goal, &p.TargetDays, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get tag page: %w", err)
	}
	return p, nil
}

// UpsertTagPage saves the goal settings of a tag page.
func (db *DB) UpsertTagPage(ctx context.Context, p *models.TagPage) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO tag_pages (user_id, tag, goal, target_days, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, tag) DO UPDATE SET
			goal        = excluded.goal,
			target_days = excluded.target_days,
			updated_at  = excluded.updated_at
	`, p.UserID, p.Tag, p.Goal, p.TargetDays, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert tag page: %w", err)
	}
	return nil
}
