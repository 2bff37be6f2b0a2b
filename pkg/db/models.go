package db

import "time"

// Word is a resolved dictionary sense. (TargetCode, SenseNo) identifies it when both are positive;
// otherwise Name does.
type Word struct {
	ID         int64
	Name       string
	Synonyms   string
	Antonyms   string
	Definition string
	Category   string
	ShoulderNo int
	Example    string
	TargetCode int64
	SenseNo    int
	CreatedAt  time.Time
	DeletedAt  *time.Time
}

// HasSenseKey reports whether the word is keyed by (TargetCode, SenseNo).
func (w Word) HasSenseKey() bool {
	return w.TargetCode > 0 && w.SenseNo > 0
}

// Changes returns the columns whose value in next differs from w, keyed by column name.
// A sense key is never cleared: zero TargetCode or SenseNo in next leaves the stored value alone.
func (w Word) Changes(next Word) map[string]any {
	changes := make(map[string]any)
	set := func(col string, old, cur any) {
		if old != cur {
			changes[col] = cur
		}
	}
	set("word_name", w.Name, next.Name)
	set("synonyms", w.Synonyms, next.Synonyms)
	set("antonyms", w.Antonyms, next.Antonyms)
	set("definition", w.Definition, next.Definition)
	set("category", w.Category, next.Category)
	set("example", w.Example, next.Example)
	set("shoulder_no", w.ShoulderNo, next.ShoulderNo)
	if next.TargetCode > 0 {
		set("target_code", w.TargetCode, next.TargetCode)
	}
	if next.SenseNo > 0 {
		set("sense_no", w.SenseNo, next.SenseNo)
	}
	return changes
}

// Wordbook is a user's personal vocabulary list; one per user.
type Wordbook struct {
	ID        int64
	UserID    int64
	CreatedAt time.Time
}

// ComparisonType classifies a scrap activity.
type ComparisonType string

const (
	ComparisonCategory       ComparisonType = "CATEGORY"
	ComparisonTitle          ComparisonType = "TITLE"
	ComparisonSummary        ComparisonType = "SUMMARY"
	ComparisonKeyword        ComparisonType = "KEYWORD"
	ComparisonUnknownWord    ComparisonType = "UNKNOWN_WORD"
	ComparisonThoughtSummary ComparisonType = "THOUGHT_SUMMARY"
)

// ScrapActivity is a logged comparison between a user's answer and an AI reference answer.
// For UNKNOWN_WORD rows UserAnswer is a delimited list of words the user did not know.
type ScrapActivity struct {
	ID             int64
	UserID         int64
	ArticleID      int64
	ComparisonType ComparisonType
	UserAnswer     string
	AIAnswer       string
	Score          float64
	CreatedAt      time.Time
}
