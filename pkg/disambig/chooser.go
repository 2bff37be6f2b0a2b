package disambig

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/newsword/newsword/pkg/logging"
)

// Chooser asks AI first and falls back to HeuristicIndex whenever no usable answer comes back.
type Chooser struct {
	AI            Disambiguator
	Timeout       time.Duration
	MinConfidence float64
	Log           *zap.Logger
}

// Pick returns a valid index into candidates, or -1 when there are none.
func (c *Chooser) Pick(ctx context.Context, text string, candidates []Candidate) int {
	switch len(candidates) {
	case 0:
		return -1
	case 1:
		return 0
	}
	if c.AI != nil {
		if idx, ok := c.ask(ctx, text, candidates); ok {
			return idx
		}
	}
	return HeuristicIndex(text, candidates)
}

func (c *Chooser) ask(ctx context.Context, text string, candidates []Candidate) (int, bool) {
	log := logging.OrNop(c.Log)
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	d, err := c.AI.Choose(ctx, text, candidates)
	if err != nil {
		log.Debug("disambiguator fell back", zap.Error(err))
		return 0, false
	}
	if d.Index < 0 || d.Index >= len(candidates) {
		log.Debug("disambiguator index out of range", zap.Int("index", d.Index))
		return 0, false
	}
	if d.Confidence < c.MinConfidence {
		log.Debug("disambiguator below confidence", zap.Float64("confidence", d.Confidence))
		return 0, false
	}
	return d.Index, true
}
