package content

import "strings"

// MatchesSearch reports whether term occurs, case-insensitively, in content
// or in any of the tags. A blank term matches everything.
func MatchesSearch(content string, tags []string, term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return true
	}
	needle := strings.ToLower(term)
	if strings.Contains(strings.ToLower(content), needle) {
		return true
	}
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}
