package content

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/starford/hashnote/internal/checksum"
	"github.com/starford/hashnote/internal/models"
)

const (
	// MaxTitleRunes bounds the title derived from the first line of a note.
	MaxTitleRunes = 100
	// ImageNoteTitle is used when a note has images but no text.
	ImageNoteTitle = "图片笔记"

	dateLayout = "2006-01-02 15:04"
)

// DisplayNote is the read-time view of a note. It is never persisted.
type DisplayNote struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Content         string     `json:"content"`
	OriginalContent string     `json:"original_content"`
	Tags            []string   `json:"tags"`
	ImageURL        string     `json:"image_url,omitempty"`
	Todos           []TodoItem `json:"todos"`
	Date            string     `json:"date"`
	Checksum        string     `json:"checksum"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Assemble builds the display view of n. The image URL, the sanitized text
// and the todos are each derived from the unmodified n.Content: todos must see
// the #todo markers that sanitizing removes.
func Assemble(n models.Note) DisplayNote {
	raw := n.Content

	imageURL, _ := ExtractImageURL(raw)
	display := RemoveTags(StripImages(raw))
	todos := ParseTodos(raw)

	tags := n.Tags
	if tags == nil {
		tags = ExtractTags(raw)
	}

	return DisplayNote{
		ID:              n.ID,
		Title:           n.Title,
		Content:         display,
		OriginalContent: raw,
		Tags:            tags,
		ImageURL:        imageURL,
		Todos:           todos,
		Date:            n.CreatedAt.Format(dateLayout),
		Checksum:        checksum.Sum([]byte(raw)),
		CreatedAt:       n.CreatedAt,
		UpdatedAt:       n.UpdatedAt,
	}
}

// Draft is the user input for a note write.
type Draft struct {
	Text      string
	ImageURLs []string
	// Tags supplied by the caller are ignored; tags always come from the
	// composed content.
	Tags []string
}

// WriteFields is the persisted payload produced from a Draft.
type WriteFields struct {
	Title   string
	Content string
	Tags    []string
}

// ToWriteFields composes the stored content of d and derives its title and tags.
func ToWriteFields(d Draft) WriteFields {
	return FromContent(ComposeContent(d.Text, d.ImageURLs))
}

// FromContent re-derives the write payload of already composed content, as
// needed after a todo toggle.
func FromContent(body string) WriteFields {
	text := strings.TrimSpace(StripImages(body))
	_, hasImage := ExtractImageURL(body)
	return WriteFields{
		Title:   DeriveTitle(text, hasImage),
		Content: body,
		Tags:    ExtractTags(body),
	}
}

// DeriveTitle returns the first non-empty line of text cut to MaxTitleRunes,
// or ImageNoteTitle when text is empty and the note has an image.
func DeriveTitle(text string, hasImage bool) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return truncateRunes(line, MaxTitleRunes)
		}
	}
	if hasImage {
		return ImageNoteTitle
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
