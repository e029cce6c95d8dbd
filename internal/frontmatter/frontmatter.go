// Package frontmatter splits an optional YAML frontmatter block off a text
// file and reads the note attributes it may carry.
package frontmatter

import (
	"bytes"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Meta holds the attributes hashnote understands in a frontmatter block.
type Meta struct {
	Title   string
	Tags    []string
	Created time.Time
	Raw     map[string]any
}

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04", time.DateTime, time.DateOnly}

// Split separates YAML frontmatter (between leading --- delimiters) from the
// body. Files without frontmatter, or with invalid YAML, are returned whole as
// body with a zero Meta.
func Split(data []byte) (Meta, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return Meta{}, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return Meta{}, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var raw map[string]any
	if err := yaml.Unmarshal(yamlBlock, &raw); err != nil {
		return Meta{}, string(data)
	}
	return readMeta(raw), body
}

func readMeta(raw map[string]any) Meta {
	m := Meta{Raw: raw}
	if s, ok := raw["title"].(string); ok {
		m.Title = strings.TrimSpace(s)
	}

	switch v := raw["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				m.Tags = appendTag(m.Tags, s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			m.Tags = appendTag(m.Tags, s)
		}
	}

	for _, key := range []string{"created", "date"} {
		if t, ok := parseTime(raw[key]); ok {
			m.Created = t
			break
		}
	}
	return m
}

func appendTag(tags []string, s string) []string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return tags
	}
	return append(tags, s)
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range dateLayouts {
			if parsed, err := time.ParseInLocation(layout, strings.TrimSpace(t), time.Local); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
