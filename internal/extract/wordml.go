package extract

import (
	"html"
	"regexp"
	"strings"
)

var (
	paragraphEnd = regexp.MustCompile(`</w:p>|<w:br\s*/>|<w:cr\s*/>`)
	tabTag       = regexp.MustCompile(`<w:tab\s*/>`)
	anyTag       = regexp.MustCompile(`<[^>]+>`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
)

// xmlToText flattens WordprocessingML into text, one line per paragraph.
func xmlToText(content string) string {
	content = paragraphEnd.ReplaceAllString(content, "\n")
	content = tabTag.ReplaceAllString(content, "\t")
	content = anyTag.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
