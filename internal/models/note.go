// Package models defines the persisted domain types for hashnote.
package models

import "time"

// Note is the stored note record. Content is authoritative; Tags is a
// denormalized cache of the hashtags found in Content.
type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TagCount is the number of notes carrying a tag.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// TagPage holds the user-editable settings of a tag page.
type TagPage struct {
	UserID     string    `json:"-"`
	Tag        string    `json:"tag"`
	Goal       string    `json:"goal"`
	TargetDays int       `json:"target_days"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Streak summarizes the days on which a tag was used.
type Streak struct {
	Current        int    `json:"current"`
	Longest        int    `json:"longest"`
	TotalDays      int    `json:"total_days"`
	LastCheckIn    string `json:"last_check_in,omitempty"` // YYYY-MM-DD
	CheckedInToday bool   `json:"checked_in_today"`
}
