// Package filter holds the text transforms applied to fetched filter lists:
// include rewriting, comparison and validation.
package filter

import (
	"regexp"
	"slices"
	"strings"
)

var (
	lineBreak     = regexp.MustCompile(`\r\n|\r|\n`)
	headerPattern = regexp.MustCompile(`(?i)^(?:!|# )[\t ]*(?:Title|Expires)[\t ]*:`)
)

// Lines splits text on LF, CRLF or a lone CR.
func Lines(text string) []string {
	return lineBreak.Split(text, -1)
}

// Normalize returns the significant lines of a filter list: trimmed, with
// blank lines and comments removed but Title/Expires headers and "!#"
// directives kept.
func Normalize(text string) []string {
	var out []string
	for _, line := range Lines(text) {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case headerPattern.MatchString(line), strings.HasPrefix(line, "!#"):
			out = append(out, line)
		case strings.HasPrefix(line, "!"):
			continue
		case line == "#", strings.HasPrefix(line, "# "):
			continue
		default:
			out = append(out, line)
		}
	}
	return out
}

// AreEqual reports whether a and b normalize to the same line sequence.
func AreEqual(a, b string) bool {
	return slices.Equal(Normalize(a), Normalize(b))
}

// Comparator adapts AreEqual to an interface value.
type Comparator struct{}

// AreEqual implements the publisher's comparison hook.
func (Comparator) AreEqual(a, b string) bool {
	return AreEqual(a, b)
}
