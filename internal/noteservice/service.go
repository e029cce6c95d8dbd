// Package noteservice coordinates the note store, the content model and the
// derived caches. Every read goes through content.Assemble.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/hashnote/internal/apperr"
	"github.com/starford/hashnote/internal/cache"
	"github.com/starford/hashnote/internal/checksum"
	"github.com/starford/hashnote/internal/content"
	"github.com/starford/hashnote/internal/models"
	"github.com/starford/hashnote/internal/store"
)

// Event kinds passed to a Publisher.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
	EventToggled = "toggled"
)

// Publisher is notified after every successful write.
type Publisher interface {
	PublishNoteEvent(userID, kind, noteID string)
}

// ListQuery selects notes for a listing.
type ListQuery struct {
	Tag    string
	Search string
	Limit  int
	Offset int
}

// TodoEntry is a todo item together with the note that holds it.
type TodoEntry struct {
	NoteID    string `json:"note_id"`
	NoteTitle string `json:"note_title"`
	content.TodoItem
}

// Todo status filters.
const (
	TodoOpen = "open"
	TodoDone = "done"
	TodoAll  = "all"
)

// TagPageView is a tag page with its derived streak and notes.
type TagPageView struct {
	Tag        string                `json:"tag"`
	Goal       string                `json:"goal"`
	TargetDays int                   `json:"target_days"`
	Streak     models.Streak         `json:"streak"`
	Notes      []content.DisplayNote `json:"notes"`
}

// Service implements the note operations shared by the REST API, the MCP
// server and the inbox importer.
type Service struct {
	store store.NoteStore
	cache *cache.Cache
	pub   Publisher
	now   func() time.Time
	loc   *time.Location
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables the tag-count read cache.
func WithCache(c *cache.Cache) Option { return func(s *Service) { s.cache = c } }

// WithPublisher sets the write notification target.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.pub = p } }

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLocation sets the zone in which check-in days are counted.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

// New creates a note service on top of st.
func New(st store.NoteStore, opts ...Option) *Service {
	s := &Service{store: st, now: time.Now, loc: time.Local}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateNote composes d into a new note.
func (s *Service) CreateNote(ctx context.Context, userID string, d content.Draft) (*content.DisplayNote, error) {
	fields := content.ToWriteFields(d)
	if strings.TrimSpace(fields.Content) == "" {
		return nil, fmt.Errorf("noteservice: create: empty note: %w", apperr.ErrInvalid)
	}
	return s.insert(ctx, userID, fields, time.Time{})
}

// ImportNote stores an already composed body, as read from an inbox file.
// A zero created uses the current time.
func (s *Service) ImportNote(ctx context.Context, userID, body string, created time.Time) (*content.DisplayNote, error) {
	fields := content.FromContent(strings.TrimSpace(body))
	if fields.Content == "" {
		return nil, fmt.Errorf("noteservice: import: empty note: %w", apperr.ErrInvalid)
	}
	return s.insert(ctx, userID, fields, created)
}

func (s *Service) insert(ctx context.Context, userID string, f content.WriteFields, created time.Time) (*content.DisplayNote, error) {
	n := &models.Note{
		UserID:    userID,
		Title:     f.Title,
		Content:   f.Content,
		Tags:      f.Tags,
		CreatedAt: created,
	}
	if err := s.store.CreateNote(ctx, n); err != nil {
		return nil, fmt.Errorf("noteservice: create: %w", err)
	}
	s.changed(ctx, userID, EventCreated, n.ID)
	dn := content.Assemble(*n)
	return &dn, nil
}

// GetNote returns the display view of a note.
func (s *Service) GetNote(ctx context.Context, userID, id string) (*content.DisplayNote, error) {
	n, err := s.store.GetNote(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	dn := content.Assemble(*n)
	return &dn, nil
}

// UpdateNote replaces the content of a note. A non-empty ifMatch must equal
// the checksum of the stored content.
func (s *Service) UpdateNote(ctx context.Context, userID, id string, d content.Draft, ifMatch string) (*content.DisplayNote, error) {
	existing, err := s.store.GetNote(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum([]byte(existing.Content)) {
		return nil, apperr.ErrConflict
	}

	fields := content.ToWriteFields(d)
	if strings.TrimSpace(fields.Content) == "" {
		return nil, fmt.Errorf("noteservice: update: empty note: %w", apperr.ErrInvalid)
	}
	n, err := s.write(ctx, existing, fields)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, userID, EventUpdated, id)
	dn := content.Assemble(*n)
	return &dn, nil
}

// DeleteNote removes a note.
func (s *Service) DeleteNote(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteNote(ctx, userID, id); err != nil {
		return err
	}
	s.changed(ctx, userID, EventDeleted, id)
	return nil
}

// ListNotes returns display notes newest first and the number of matches
// before pagination. Search terms are matched with content.MatchesSearch.
func (s *Service) ListNotes(ctx context.Context, userID string, q ListQuery) ([]content.DisplayNote, int, error) {
	filter := store.ListFilter{Tag: q.Tag}
	if strings.TrimSpace(q.Search) == "" {
		filter.Limit, filter.Offset = q.Limit, q.Offset
		notes, total, err := s.store.ListNotes(ctx, userID, filter)
		if err != nil {
			return nil, 0, err
		}
		return assembleAll(notes), total, nil
	}

	notes, _, err := s.store.ListNotes(ctx, userID, filter)
	if err != nil {
		return nil, 0, err
	}
	matched := make([]models.Note, 0, len(notes))
	for _, n := range notes {
		if content.MatchesSearch(n.Content, n.Tags, q.Search) {
			matched = append(matched, n)
		}
	}
	return assembleAll(paginate(matched, q.Limit, q.Offset)), len(matched), nil
}

// ToggleTodo flips the completion state of one todo block. The write is a
// compare-and-swap on the content that was toggled; a lost race is retried
// once against the fresh content.
func (s *Service) ToggleTodo(ctx context.Context, userID, noteID, todoID string) (*content.DisplayNote, error) {
	const attempts = 2
	var lastErr error
	for range attempts {
		n, err := s.store.GetNote(ctx, userID, noteID)
		if err != nil {
			return nil, err
		}
		next, ok := content.ToggleTodo(n.Content, todoID)
		if !ok {
			return nil, fmt.Errorf("noteservice: todo %s: %w", todoID, apperr.ErrNotFound)
		}
		updated, err := s.write(ctx, n, content.FromContent(next))
		if errors.Is(err, apperr.ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		s.changed(ctx, userID, EventToggled, noteID)
		dn := content.Assemble(*updated)
		return &dn, nil
	}
	return nil, lastErr
}

// ListTodos returns the todos of every note, newest note first, filtered by
// status (TodoOpen, TodoDone or TodoAll).
func (s *Service) ListTodos(ctx context.Context, userID, status string) ([]TodoEntry, error) {
	if status == "" {
		status = TodoAll
	}
	if status != TodoOpen && status != TodoDone && status != TodoAll {
		return nil, fmt.Errorf("noteservice: todo status %q: %w", status, apperr.ErrInvalid)
	}

	// Every #todo marker is also the tag "todo".
	notes, _, err := s.store.ListNotes(ctx, userID, store.ListFilter{Tag: "todo"})
	if err != nil {
		return nil, err
	}
	out := []TodoEntry{}
	for _, n := range notes {
		for _, item := range content.ParseTodos(n.Content) {
			if status == TodoOpen && item.Completed || status == TodoDone && !item.Completed {
				continue
			}
			out = append(out, TodoEntry{NoteID: n.ID, NoteTitle: n.Title, TodoItem: item})
		}
	}
	return out, nil
}

// Tags returns the user's tag counts, most used first.
func (s *Service) Tags(ctx context.Context, userID string) ([]models.TagCount, error) {
	if counts, ok := s.cache.TagCounts(ctx, userID); ok {
		return counts, nil
	}
	counts, err := s.store.TagCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache.StoreTagCounts(ctx, userID, counts)
	return counts, nil
}

// TagPage returns the goal settings, the streak and the notes of a tag.
func (s *Service) TagPage(ctx context.Context, userID, tag string) (*TagPageView, error) {
	tag, err := normalize(tag)
	if err != nil {
		return nil, err
	}
	page, err := s.store.GetTagPage(ctx, userID, tag)
	if err != nil {
		return nil, err
	}
	times, err := s.store.TagTimes(ctx, userID, tag)
	if err != nil {
		return nil, err
	}
	notes, _, err := s.store.ListNotes(ctx, userID, store.ListFilter{Tag: tag})
	if err != nil {
		return nil, err
	}
	return &TagPageView{
		Tag:        tag,
		Goal:       page.Goal,
		TargetDays: page.TargetDays,
		Streak:     ComputeStreak(times, s.now(), s.loc),
		Notes:      assembleAll(notes),
	}, nil
}

// SetTagGoal saves the goal of a tag page.
func (s *Service) SetTagGoal(ctx context.Context, userID, tag, goal string, targetDays int) (*models.TagPage, error) {
	tag, err := normalize(tag)
	if err != nil {
		return nil, err
	}
	if targetDays < 0 {
		return nil, fmt.Errorf("noteservice: target days %d: %w", targetDays, apperr.ErrInvalid)
	}
	p := &models.TagPage{UserID: userID, Tag: tag, Goal: strings.TrimSpace(goal), TargetDays: targetDays}
	if err := s.store.UpsertTagPage(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CheckIn records a check-in on a tag page by creating a note carrying the
// tag, followed by the optional text.
func (s *Service) CheckIn(ctx context.Context, userID, tag, text string) (*content.DisplayNote, error) {
	tag, err := normalize(tag)
	if err != nil {
		return nil, err
	}
	body := "#" + tag
	if text = strings.TrimSpace(text); text != "" {
		body += " " + text
	}
	return s.CreateNote(ctx, userID, content.Draft{Text: body})
}

// write persists fields over n with a compare-and-swap on n.Content.
func (s *Service) write(ctx context.Context, n *models.Note, f content.WriteFields) (*models.Note, error) {
	prev := n.Content
	upd := *n
	upd.Title = f.Title
	upd.Content = f.Content
	upd.Tags = f.Tags
	if err := s.store.UpdateNote(ctx, &upd, prev); err != nil {
		return nil, err
	}
	return &upd, nil
}

func (s *Service) changed(ctx context.Context, userID, kind, id string) {
	s.cache.Evict(ctx, userID)
	if s.pub != nil {
		s.pub.PublishNoteEvent(userID, kind, id)
	}
}

func normalize(tag string) (string, error) {
	t := content.NormalizeTag(tag)
	if t == "" {
		return "", fmt.Errorf("noteservice: tag %q: %w", tag, apperr.ErrInvalid)
	}
	return t, nil
}

func assembleAll(notes []models.Note) []content.DisplayNote {
	out := make([]content.DisplayNote, len(notes))
	for i, n := range notes {
		out[i] = content.Assemble(n)
	}
	return out
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
