package disambig

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// HeuristicIndex scores each candidate by the number of distinct tokens its definition,
// example and first category share with text, and returns the highest scoring index.
// Ties go to the earliest candidate. It returns -1 only for an empty candidate list.
func HeuristicIndex(text string, candidates []Candidate) int {
	if len(candidates) == 0 {
		return -1
	}
	ctxTokens := make(map[string]struct{})
	for _, t := range tokens(text) {
		ctxTokens[t] = struct{}{}
	}
	best, bestScore := 0, -1
	for i, c := range candidates {
		var b strings.Builder
		b.WriteString(c.Definition)
		b.WriteByte(' ')
		b.WriteString(c.Example)
		if len(c.Categories) > 0 {
			b.WriteByte(' ')
			b.WriteString(c.Categories[0])
		}
		seen := make(map[string]struct{})
		score := 0
		for _, t := range tokens(b.String()) {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			if _, ok := ctxTokens[t]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// tokens splits s on anything that is not a letter or digit and drops one-rune tokens.
func tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
