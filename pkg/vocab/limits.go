package vocab

import (
	"strings"
	"unicode/utf8"

	"github.com/newsword/newsword/pkg/config"
)

// Limits are the stored column caps, in runes.
type Limits struct {
	WordName    int
	ListElement int
	List        int
	Definition  int
	Category    int
	Example     int
}

// LimitsFromConfig copies the caps out of cfg.
func LimitsFromConfig(cfg config.VocabConfig) Limits {
	return Limits{
		WordName:    cfg.WordNameMax,
		ListElement: cfg.ListElementMax,
		List:        cfg.ListMax,
		Definition:  cfg.DefinitionMax,
		Category:    cfg.CategoryMax,
		Example:     cfg.ExampleMax,
	}
}

// DefaultLimits matches the config defaults.
func DefaultLimits() Limits {
	return Limits{WordName: 100, ListElement: 50, List: 500, Definition: 1000, Category: 255, Example: 1000}
}

// Truncate cuts s to at most n runes. n <= 0 means no limit.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// JoinAndLimitEach trims and caps every item at perItem runes, skips empties, and joins
// them with sep for as long as the result stays within total runes.
func JoinAndLimitEach(items []string, sep string, perItem, total int) string {
	var b strings.Builder
	size := 0
	sepLen := utf8.RuneCountInString(sep)
	for _, it := range items {
		it = Truncate(strings.TrimSpace(it), perItem)
		if it == "" {
			continue
		}
		n := utf8.RuneCountInString(it)
		if size > 0 {
			n += sepLen
		}
		if total > 0 && size+n > total {
			if size == 0 {
				b.WriteString(Truncate(it, total))
			}
			break
		}
		if size > 0 {
			b.WriteString(sep)
		}
		b.WriteString(it)
		size += n
	}
	return b.String()
}
