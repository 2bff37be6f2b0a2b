// Package disambig picks the dictionary sense that best fits a piece of text.
package disambig

import (
	"context"
	"errors"
)

// ErrNoConfidentPick is returned when the disambiguator declines to choose.
var ErrNoConfidentPick = errors.New("no confident pick")

// Candidate is one sense offered for selection.
type Candidate struct {
	Lemma      string   `json:"lemma"`
	TargetCode int64    `json:"targetCode,omitempty"`
	SenseNo    int      `json:"senseNo,omitempty"`
	Definition string   `json:"definition"`
	Example    string   `json:"example,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Decision is a disambiguator's answer. Index refers into the candidate slice.
type Decision struct {
	Index      int
	Confidence float64
	Rationale  string
}

// Disambiguator chooses among candidates for the given context text.
type Disambiguator interface {
	Choose(ctx context.Context, text string, candidates []Candidate) (Decision, error)
}
