// Package crawl runs scrapers over a set of categories and aggregates what they saved.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newsword/newsword/pkg/logging"
	"github.com/newsword/newsword/pkg/scraper"
)

// Scraper is the part of *scraper.Scraper the orchestrator needs.
type Scraper interface {
	Name() string
	Supports(category string) bool
	Categories() []string
	Scrape(ctx context.Context, category string) (scraper.Result, error)
}

// Summary describes one orchestrated run.
type Summary struct {
	RunID       uuid.UUID         `json:"runId"`
	Saved       int               `json:"savedCount"`
	PerCategory map[string]int    `json:"perCategory"`
	Failed      map[string]string `json:"failed,omitempty"`
}

// Orchestrator dispatches categories to the scrapers that serve them.
type Orchestrator struct {
	scrapers []Scraper
	workers  int
	log      *zap.Logger
}

// New creates an Orchestrator that crawls up to workers categories at once.
func New(scrapers []Scraper, workers int, logger *zap.Logger) *Orchestrator {
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{
		scrapers: scrapers,
		workers:  workers,
		log:      logging.OrNop(logger).With(zap.String("component", "crawl")),
	}
}

// DefaultCategories lists every category some scraper has sections for, first seen first.
func (o *Orchestrator) DefaultCategories() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, s := range o.scrapers {
		for _, c := range s.Categories() {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// Run crawls each category, or DefaultCategories when none are given. A category that
// fails, including one whose crawl is aborted, is recorded in Summary.Failed and does not
// stop the others. Run itself never fails.
func (o *Orchestrator) Run(ctx context.Context, categories []string) Summary {
	if len(categories) == 0 {
		categories = o.DefaultCategories()
	}
	categories = dedupe(categories)

	sum := Summary{
		RunID:       uuid.New(),
		PerCategory: make(map[string]int, len(categories)),
		Failed:      make(map[string]string),
	}
	log := o.log.With(zap.String("runId", sum.RunID.String()))
	pool := NewPool(o.workers, len(categories))
	log.Info("crawl run started", zap.Strings("categories", categories), zap.Int("workers", pool.Workers()))

	var mu sync.Mutex
	record := func(name string, saved int, err error) {
		mu.Lock()
		defer mu.Unlock()
		sum.PerCategory[name] = saved
		sum.Saved += saved
		if err != nil {
			sum.Failed[name] = err.Error()
		}
	}

	pool.Start(ctx)
	for _, name := range categories {
		err := pool.SubmitCtx(ctx, func(ctx context.Context) error {
			saved, err := o.crawlCategory(ctx, log, name)
			record(name, saved, err)
			return err
		})
		if err != nil {
			record(name, 0, fmt.Errorf("not scheduled: %w", err))
		}
	}
	pool.Close()

	// workers stop taking jobs once ctx is done
	for _, name := range categories {
		if _, ok := sum.PerCategory[name]; !ok {
			record(name, 0, fmt.Errorf("not run: %w", context.Cause(ctx)))
		}
	}

	log.Info("crawl run finished", zap.Int("saved", sum.Saved), zap.Int("failed", len(sum.Failed)))
	return sum
}

// crawlCategory runs every scraper that serves name under a context of its own.
func (o *Orchestrator) crawlCategory(ctx context.Context, log *zap.Logger, name string) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		saved  int
		errs   []error
		served bool
	)
	for _, s := range o.scrapers {
		if !s.Supports(name) {
			continue
		}
		served = true
		res, err := s.Scrape(ctx, name)
		saved += res.SavedCount
		if err != nil {
			log.Error("category crawl failed", zap.String("site", s.Name()), zap.String("category", name),
				zap.Int("saved", res.SavedCount), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			if errors.Is(err, scraper.ErrAborted) {
				break
			}
		}
	}
	if !served {
		err := fmt.Errorf("%w: %q", scraper.ErrUnknownCategory, name)
		log.Error("no scraper for category", zap.String("category", name))
		return 0, err
	}
	return saved, errors.Join(errs...)
}

func dedupe(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
