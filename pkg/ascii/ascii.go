// Package ascii provides utilities for boxed and columnar terminal output
package ascii

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Box builds a box containing the provided lines and returns it as a string.
// Lines are left-aligned with single-space padding on each side. Multi-width
// runes (CJK, etc.) are accounted for so the borders stay aligned.
func Box(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	trimmed := make([]string, len(lines))
	maxWidth := 0
	for i, line := range lines {
		trimmed[i] = strings.TrimRight(line, " ")
		if w := StringWidth(trimmed[i]); w > maxWidth {
			maxWidth = w
		}
	}

	innerWidth := maxWidth + 2
	border := strings.Repeat("─", innerWidth)

	var sb strings.Builder
	sb.WriteString("┌" + border + "┐\n")
	for _, line := range trimmed {
		sb.WriteString("│ " + PadRight(line, maxWidth) + " │\n")
	}
	sb.WriteString("└" + border + "┘\n")
	return sb.String()
}

// DrawBox writes a box containing the provided lines to w.
func DrawBox(w io.Writer, lines []string) {
	if len(lines) == 0 {
		return
	}
	_, _ = fmt.Fprint(w, Box(lines))
}

// Table lays rows out in columns separated by two spaces, with a ruled header.
// Cells wider than maxCell are truncated; maxCell <= 0 disables truncation.
func Table(header []string, rows [][]string, maxCell int) []string {
	widths := make([]int, len(header))
	cell := func(row []string, i int) string {
		if i >= len(row) {
			return ""
		}
		if maxCell > 0 {
			return TruncateForBox(row[i], maxCell)
		}
		return row[i]
	}

	for i := range header {
		widths[i] = StringWidth(cell(header, i))
		for _, r := range rows {
			if w := StringWidth(cell(r, i)); w > widths[i] {
				widths[i] = w
			}
		}
	}

	render := func(row []string) string {
		parts := make([]string, len(header))
		for i := range header {
			parts[i] = PadRight(cell(row, i), widths[i])
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	rule := make([]string, len(header))
	for i, w := range widths {
		rule[i] = strings.Repeat("─", w)
	}

	lines := []string{render(header), strings.Join(rule, "  ")}
	for _, r := range rows {
		lines = append(lines, render(r))
	}
	return lines
}

// PadRight pads s with spaces up to the given display width.
func PadRight(s string, width int) string {
	fill := width - StringWidth(s)
	if fill <= 0 {
		return s
	}
	return s + strings.Repeat(" ", fill)
}

// TruncateForBox truncates a string so that its display width fits within the
// provided width. An ellipsis ("...") is appended when truncation occurs and
// there is space for it.
func TruncateForBox(value string, width int) string {
	if width <= 0 {
		return ""
	}
	if StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return substringWithWidth(value, width)
	}
	return substringWithWidth(value, width-3) + "..."
}

func substringWithWidth(s string, target int) string {
	if target <= 0 {
		return ""
	}
	width := 0
	var sb strings.Builder
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if width+w > target {
			break
		}
		width += w
		sb.WriteRune(r)
	}
	return sb.String()
}

// StringWidth returns the display width of a string, accounting for
// multi-width Unicode characters.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}
