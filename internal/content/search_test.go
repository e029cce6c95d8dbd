package content

import "testing"

func TestMatchesSearch(t *testing.T) {
	tests := []struct {
		name    string
		content string
		tags    []string
		term    string
		want    bool
	}{
		{"content and tag", "go shopping", []string{"goal"}, "go", true},
		{"empty term", "x", nil, "", true},
		{"blank term", "x", nil, "   ", true},
		{"case-insensitive content", "Meeting Notes", nil, "meeting", true},
		{"tag substring only", "nothing here", []string{"reading"}, "READ", true},
		{"cjk", "今天完成", []string{"打卡"}, "打", true},
		{"no match", "abc", []string{"def"}, "xyz", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesSearch(tt.content, tt.tags, tt.term); got != tt.want {
				t.Errorf("MatchesSearch(%q, %v, %q) = %v, want %v", tt.content, tt.tags, tt.term, got, tt.want)
			}
		})
	}
}
