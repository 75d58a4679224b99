package notes

import (
	"strings"
	"unicode/utf8"
)

// ContentPreview returns the first maxLines lines of content, appending "..." on a new line if truncated.
// If content has maxLines or fewer lines, returns content unchanged.
func ContentPreview(content string, maxLines int) string {
	if content == "" || maxLines <= 0 {
		return content
	}

	found := 0
	for i := 0; i < len(content); i++ {
		if content[i] != '\n' {
			continue
		}
		found++
		if found == maxLines {
			return content[:i] + "\n..."
		}
	}
	return content
}

// CountLines returns the number of lines in content.
// An empty string has 0 lines.
func CountLines(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}

// CardPreview shortens content for a list card: at most maxLines lines and
// maxRunes runes, with a trailing ellipsis when anything was cut.
func CardPreview(content string, maxLines, maxRunes int) string {
	preview := ContentPreview(content, maxLines)
	if maxRunes <= 0 || utf8.RuneCountInString(preview) <= maxRunes {
		return preview
	}
	runes := []rune(preview)
	return strings.TrimRight(string(runes[:maxRunes]), " \n") + "..."
}
