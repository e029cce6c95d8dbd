// Package content derives structured data (tags, todos, images, display text)
// from a note body and merges edits back into it. Every function here is pure.
package content

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// tagRe matches "#" followed by ASCII word characters or CJK unified ideographs.
var (
	tagRe        = regexp.MustCompile(`#[A-Za-z0-9_\p{Han}]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// ExtractTags returns the lowercased hashtags of content in first-occurrence
// order, without duplicates.
func ExtractTags(content string) []string {
	out := []string{}
	matches := tagRe.FindAllString(content, -1)
	if len(matches) == 0 {
		return out
	}

	// A Caser is stateful, so one per call.
	lower := cases.Lower(language.Und)
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		t := lower.String(strings.TrimPrefix(m, "#"))
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// RemoveTags strips every hashtag from content, collapses whitespace runs
// into a single space and trims the result.
func RemoveTags(content string) string {
	stripped := tagRe.ReplaceAllString(content, "")
	return collapseSpace(stripped)
}

// NormalizeTag lowercases a user supplied tag and drops a leading '#'.
// It returns "" when the input is not a valid tag.
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if !strings.HasPrefix(tag, "#") {
		tag = "#" + tag
	}
	if loc := tagRe.FindStringIndex(tag); loc == nil || loc[0] != 0 || loc[1] != len(tag) {
		return ""
	}
	return cases.Lower(language.Und).String(tag[1:])
}

func collapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
