package content

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/starford/hashnote/internal/checksum"
)

const (
	todoMarker = "todo"
	// DoneMark prefixes the text of a completed todo block.
	DoneMark = "✓"
)

var (
	dueRe      = regexp.MustCompile(`(?:^|\s)due:(\d{4}-\d{2}-\d{2})\b`)
	startRe    = regexp.MustCompile(`(?:^|\s)start:(\d{4}-\d{2}-\d{2})\b`)
	priorityRe = regexp.MustCompile(`(?:^|\s)!([1-3])(?:\s|$)`)
)

// TodoItem is a todo block parsed out of note content.
type TodoItem struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	Completed bool     `json:"completed"`
	Priority  int      `json:"priority,omitempty"` // 1 (high) to 3 (low), 0 when unset
	Tags      []string `json:"tags,omitempty"`     // tags of the enclosing note other than todo
	DueDate   string   `json:"due_date,omitempty"`
	StartDate string   `json:"start_date,omitempty"`
}

// todoBlock locates the text of one #todo block inside the content.
type todoBlock struct {
	start, end int // byte span of the text following the marker
}

// scanTodoBlocks returns every #todo block in textual order. A block runs from
// the end of the marker to the next '#' or the end of content. The marker is a
// whole tag, so "#todos" and "#todo买" are tags of their own and start no block.
func scanTodoBlocks(content string) []todoBlock {
	var out []todoBlock
	for _, loc := range tagRe.FindAllStringIndex(content, -1) {
		if !strings.EqualFold(content[loc[0]+1:loc[1]], todoMarker) {
			continue
		}
		end := len(content)
		if i := strings.IndexByte(content[loc[1]:], '#'); i >= 0 {
			end = loc[1] + i
		}
		out = append(out, todoBlock{start: loc[1], end: end})
	}
	return out
}

// splitDone reports whether text starts with the done mark and returns the
// text without it.
func splitDone(text string) (string, bool) {
	if !strings.HasPrefix(text, DoneMark) {
		return text, false
	}
	return strings.TrimSpace(text[len(DoneMark):]), true
}

// ParseTodos extracts one TodoItem per non-empty #todo block.
func ParseTodos(content string) []TodoItem {
	out := []TodoItem{}
	ids := newTodoIDs()
	var noteTags []string
	for _, b := range scanTodoBlocks(content) {
		text := strings.TrimSpace(content[b.start:b.end])
		text, done := splitDone(text)
		if text == "" {
			continue
		}
		item := TodoItem{
			ID:        ids.next(text),
			Content:   text,
			Completed: done,
		}
		if noteTags == nil {
			noteTags = noteContextTags(content)
		}
		if len(noteTags) > 0 {
			item.Tags = noteTags
		}
		readAttributes(&item)
		out = append(out, item)
	}
	return out
}

// ToggleTodo flips the completion mark of the todo block with the given id.
// It returns the rewritten content and true, or the unchanged content and
// false when no block has that id.
func ToggleTodo(content, id string) (string, bool) {
	ids := newTodoIDs()
	for _, b := range scanTodoBlocks(content) {
		block := content[b.start:b.end]
		lead := len(block) - len(strings.TrimLeftFunc(block, unicode.IsSpace))
		text, done := splitDone(strings.TrimSpace(block))
		if text == "" {
			continue
		}
		if ids.next(text) != id {
			continue
		}

		at := b.start + lead
		if done {
			if !strings.HasPrefix(content[at:], DoneMark) {
				return content, false
			}
			rest := strings.TrimLeft(content[at+len(DoneMark):], " \t")
			return content[:at] + rest, true
		}
		return content[:at] + DoneMark + " " + content[at:], true
	}
	return content, false
}

// noteContextTags returns the tags of content other than the todo marker.
func noteContextTags(content string) []string {
	tags := ExtractTags(content)
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != todoMarker {
			out = append(out, t)
		}
	}
	return out
}

// todoIDs hands out deterministic ids derived from the block text. Repeated
// identical blocks get an ordinal suffix.
type todoIDs struct {
	seen map[string]int
}

func newTodoIDs() *todoIDs {
	return &todoIDs{seen: make(map[string]int)}
}

func (g *todoIDs) next(text string) string {
	key := collapseSpace(text)
	id := "todo_" + checksum.Short([]byte(key), 12)
	n := g.seen[key]
	g.seen[key] = n + 1
	if n > 0 {
		id = fmt.Sprintf("%s_%d", id, n)
	}
	return id
}

func readAttributes(item *TodoItem) {
	if m := dueRe.FindStringSubmatch(item.Content); m != nil && validDate(m[1]) {
		item.DueDate = m[1]
	}
	if m := startRe.FindStringSubmatch(item.Content); m != nil && validDate(m[1]) {
		item.StartDate = m[1]
	}
	if m := priorityRe.FindStringSubmatch(item.Content); m != nil {
		item.Priority = int(m[1][0] - '0')
	}
}

func validDate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}
