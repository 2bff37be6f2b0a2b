package fetch

import (
	"regexp"
	"strings"
)

var (
	reSpaceRun   = regexp.MustCompile(`[ \t]+`)
	reNewlineRun = regexp.MustCompile(` *\n[ \n]*`)
)

// CleanText normalizes extracted text: NBSP becomes a space, runs of spaces and tabs collapse
// to one space, newlines with surrounding spaces collapse to a single newline, and the
// result is trimmed.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = reSpaceRun.ReplaceAllString(s, " ")
	s = reNewlineRun.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
