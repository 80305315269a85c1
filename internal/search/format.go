package search

import "strings"

const (
	snippetLines    = 10
	hybridFullLines = 20
	hybridHeadLines = 15
	truncationMark  = "… (truncated)"
)

// formatSnippet shapes chunk content for one result format. Snippet
// shows a fixed-size head, context returns everything, hybrid returns
// short chunks whole and truncates long ones.
func formatSnippet(content, format string) string {
	switch format {
	case FormatContext:
		return content
	case FormatSnippet:
		return headLines(content, snippetLines)
	default:
		if lineCount(content) <= hybridFullLines {
			return content
		}
		return headLines(content, hybridHeadLines) + "\n" + truncationMark
	}
}

func headLines(content string, n int) string {
	lines := strings.Split(content, "\n")
	if len(lines) <= n {
		return content
	}
	return strings.Join(lines[:n], "\n")
}

func lineCount(content string) int {
	return strings.Count(content, "\n") + 1
}
