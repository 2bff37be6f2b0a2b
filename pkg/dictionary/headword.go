package dictionary

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CleanHeadword strips the dictionary's syllable markers ("-", "^") and any trailing
// homograph digits, e.g. "배01" → "배", "청-사진" → "청사진".
func CleanHeadword(w string) string {
	w = strings.NewReplacer("-", "", "^", "").Replace(strings.TrimSpace(w))
	w = strings.TrimRightFunc(w, unicode.IsDigit)
	return strings.TrimSpace(w)
}

// rankHeadwords picks the best lemma for surface out of cleaned candidate headwords.
// An exact match wins outright. Otherwise a headword ending in 다 scores 2 and one sharing
// the surface's first syllable scores 1; ties keep first-seen order.
func rankHeadwords(surface string, candidates []string) (string, bool) {
	best, bestScore := "", -1
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if c == surface {
			return c, true
		}
		score := 0
		if strings.HasSuffix(c, "다") {
			score += 2
		}
		if sharesFirstRune(c, surface) {
			score++
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, best != ""
}

func sharesFirstRune(a, b string) bool {
	ra, _ := utf8.DecodeRuneInString(a)
	rb, _ := utf8.DecodeRuneInString(b)
	return ra != utf8.RuneError && ra == rb
}
