package content

import (
	"fmt"
	"regexp"
	"strings"
)

// imageRe matches markdown image syntax. Nested parentheses in the URL are
// not supported.
var imageRe = regexp.MustCompile(`!\[(.*?)\]\((.*?)\)`)

// ExtractImageURL returns the URL of the first markdown image in content.
func ExtractImageURL(content string) (string, bool) {
	m := imageRe.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return m[2], true
}

// StripImages removes all markdown images from content.
func StripImages(content string) string {
	return imageRe.ReplaceAllString(content, "")
}

// BuildImageMarkdown renders urls as "![图片N](url)" blocks separated by blank lines.
func BuildImageMarkdown(urls []string) string {
	blocks := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("![图片%d](%s)", len(blocks)+1, u))
	}
	return strings.Join(blocks, "\n\n")
}

// ComposeContent appends the image block for urls to the user text,
// separated by a blank line when the text is not empty.
func ComposeContent(text string, urls []string) string {
	text = strings.TrimSpace(text)
	images := BuildImageMarkdown(urls)
	switch {
	case images == "":
		return text
	case text == "":
		return images
	default:
		return text + "\n\n" + images
	}
}
