// Package inbox imports text files dropped into a directory as notes.
// Imported files are moved to the processed/ subdirectory.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/hashnote/internal/content"
	"github.com/starford/hashnote/internal/frontmatter"
	"github.com/starford/hashnote/internal/storage"
)

// ProcessedDir receives files after a successful import.
const ProcessedDir = "processed"

var extensions = []string{".md", ".txt"}

// NoteImporter stores an imported note body.
type NoteImporter interface {
	ImportNote(ctx context.Context, userID, body string, created time.Time) (*content.DisplayNote, error)
}

// Inbox imports files under a storage root on behalf of one user.
type Inbox struct {
	fs     storage.Provider
	notes  NoteImporter
	userID string
	logger *slog.Logger
}

// New creates an inbox over fs that imports notes for userID.
func New(fs storage.Provider, notes NoteImporter, userID string, logger *slog.Logger) *Inbox {
	return &Inbox{fs: fs, notes: notes, userID: userID, logger: logger}
}

// Sync imports every pending file. Failures are logged and the file is left
// in place for the next pass. It returns the number of imported files.
func (in *Inbox) Sync(ctx context.Context) (int, error) {
	files, err := in.fs.List("", extensions...)
	if err != nil {
		return 0, err
	}
	imported := 0
	for _, f := range files {
		if !pending(f.Path) {
			continue
		}
		if err := in.importFile(ctx, f.Path); err != nil {
			in.logger.Warn("inbox: import failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		imported++
	}
	return imported, nil
}

// importFile turns one file into a note and moves it out of the way.
func (in *Inbox) importFile(ctx context.Context, rel string) error {
	data, err := in.fs.Read(rel)
	if err != nil {
		return err
	}
	meta, body := frontmatter.Split(data)
	body = withTags(body, meta.Tags)
	if strings.TrimSpace(body) == "" {
		in.logger.Debug("inbox: skipping empty file", slog.String("path", rel))
		return in.archive(rel)
	}

	dn, err := in.notes.ImportNote(ctx, in.userID, body, meta.Created)
	if err != nil {
		return fmt.Errorf("inbox: import %s: %w", rel, err)
	}
	in.logger.Info("inbox: imported", slog.String("path", rel), slog.String("note_id", dn.ID))
	return in.archive(rel)
}

// archive moves rel into ProcessedDir, adding a timestamp when the name is
// already taken.
func (in *Inbox) archive(rel string) error {
	target := path.Join(ProcessedDir, path.Base(rel))
	if in.fs.Exists(target) {
		ext := path.Ext(target)
		target = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(target, ext), time.Now().UnixNano(), ext)
	}
	return in.fs.Move(rel, target)
}

// withTags appends frontmatter tags missing from body as hashtags.
func withTags(body string, tags []string) string {
	have := make(map[string]struct{})
	for _, t := range content.ExtractTags(body) {
		have[t] = struct{}{}
	}
	var extra []string
	for _, t := range tags {
		norm := content.NormalizeTag(t)
		if norm == "" {
			continue
		}
		if _, ok := have[norm]; ok {
			continue
		}
		have[norm] = struct{}{}
		extra = append(extra, "#"+norm)
	}
	body = strings.TrimSpace(body)
	if len(extra) == 0 {
		return body
	}
	if body == "" {
		return strings.Join(extra, " ")
	}
	return body + "\n\n" + strings.Join(extra, " ")
}

// pending reports whether rel is an unprocessed top-level inbox file.
func pending(rel string) bool {
	if strings.Contains(rel, "/") {
		return false
	}
	ext := strings.ToLower(path.Ext(rel))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
