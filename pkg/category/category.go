// Package category holds the closed set of subject areas articles are filed under.
package category

import "strings"

// Category is an immutable subject area with a stable id.
type Category struct {
	ID          int
	Name        string
	Description string
}

// Default ids.
const (
	Politics      = 1
	Economy       = 2
	Finance       = 3
	RealEstate    = 4
	Industry      = 5
	IT            = 6
	Science       = 7
	Society       = 8
	International = 9
	Culture       = 10
	Welfare       = 11
)

// Defaults returns the standard category set.
func Defaults() []Category {
	return []Category{
		{Politics, "정치", "국회, 행정, 외교 등 정치 일반"},
		{Economy, "경제", "거시경제와 경제 정책"},
		{Finance, "금융", "은행, 증권, 보험 등 금융 시장"},
		{RealEstate, "부동산", "주택, 토지, 부동산 정책"},
		{Industry, "산업", "기업과 산업 동향"},
		{IT, "IT", "정보통신, 인터넷, 게임"},
		{Science, "과학", "기초과학과 기술"},
		{Society, "사회", "사건, 교육, 환경 등 사회 일반"},
		{International, "국제", "해외 소식과 국제 관계"},
		{Culture, "문화", "문화, 예술, 생활"},
		{Welfare, "고용복지", "고용, 노동, 복지 정책"},
	}
}

// DefaultSynonyms maps alternative names to a canonical category name.
func DefaultSynonyms() map[string]string {
	return map[string]string{
		"복지":   "고용복지",
		"정보통신": "IT",
		"글로벌":  "국제",
		"증권":   "금융",
	}
}

// Registry resolves category names, including synonyms, to categories.
type Registry struct {
	all      []Category
	byName   map[string]Category
	byID     map[int]Category
	synonyms map[string]string
}

// NewRegistry builds a registry from an explicit category set.
// Synonyms pointing at unknown names are ignored at lookup time.
func NewRegistry(cats []Category, synonyms map[string]string) *Registry {
	r := &Registry{
		all:      append([]Category(nil), cats...),
		byName:   make(map[string]Category, len(cats)),
		byID:     make(map[int]Category, len(cats)),
		synonyms: make(map[string]string, len(synonyms)),
	}
	for _, c := range cats {
		r.byName[key(c.Name)] = c
		r.byID[c.ID] = c
	}
	for alias, canonical := range synonyms {
		r.synonyms[key(alias)] = canonical
	}
	return r
}

// Default returns a registry over Defaults and DefaultSynonyms.
func Default() *Registry {
	return NewRegistry(Defaults(), DefaultSynonyms())
}

// Resolve returns the category for name or one of its synonyms.
func (r *Registry) Resolve(name string) (Category, bool) {
	k := key(name)
	if c, ok := r.byName[k]; ok {
		return c, true
	}
	if canonical, ok := r.synonyms[k]; ok {
		c, ok := r.byName[key(canonical)]
		return c, ok
	}
	return Category{}, false
}

// ByID returns the category with the given id.
func (r *Registry) ByID(id int) (Category, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// All returns the categories in declaration order.
func (r *Registry) All() []Category {
	return append([]Category(nil), r.all...)
}

func key(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
