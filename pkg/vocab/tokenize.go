// Package vocab turns free-text unknown-word lists into dictionary-backed wordbook entries.
package vocab

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// reParen matches one level of parenthetical annotation, half- or full-width: "배(과일)" → "배".
var reParen = regexp.MustCompile(`\([^()]*\)|（[^（）]*）|\[[^\[\]]*\]`)

func isDelimiter(r rune) bool {
	switch r {
	case ',', ';', '/', '·', '／', '，', '；', 'ㆍ', '・':
		return true
	}
	return unicode.IsSpace(r)
}

// Tokenize strips parenthetical annotations, splits raw on commas, semicolons, slashes,
// middle dots and whitespace, and removes duplicates keeping first-seen order.
func Tokenize(raw string) []string {
	stripped := raw
	for {
		next := reParen.ReplaceAllString(stripped, "")
		if next == stripped {
			break
		}
		stripped = next
	}
	fields := strings.FieldsFunc(stripped, isDelimiter)
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Normalize removes all whitespace and applies NFKC.
func Normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return norm.NFKC.String(s)
}
