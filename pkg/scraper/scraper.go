// Package scraper crawls news sections of a Site and stores the articles it finds.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/newsword/newsword/pkg/article"
	"github.com/newsword/newsword/pkg/category"
	"github.com/newsword/newsword/pkg/fetch"
	"github.com/newsword/newsword/pkg/logging"
)

var (
	// ErrUnknownCategory is returned when a site has no sections for the category.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrAborted is returned when the crawl was cancelled while waiting between articles.
	ErrAborted = errors.New("crawl aborted")
)

const (
	// MaxPagesLimit is the most listing pages crawled per section, whatever Options says.
	MaxPagesLimit     = 5
	defaultFlushEvery = 10
)

// Options bound crawl volume and pacing.
type Options struct {
	MaxPages   int
	FlushEvery int
	Delay      time.Duration
}

// Result is the outcome of one category crawl.
type Result struct {
	Category   string
	SavedCount int
}

// Scraper runs the shared crawl algorithm against one Site.
type Scraper struct {
	site       Site
	categories *category.Registry
	fetcher    fetch.Fetcher
	store      article.Store
	locks      *article.URLLock
	opts       Options
	log        *zap.Logger
}

// New creates a Scraper. A nil registry uses category.Default and a nil lock table
// gets a private one; share one URLLock between scrapers writing to the same store.
func New(site Site, categories *category.Registry, fetcher fetch.Fetcher, store article.Store, locks *article.URLLock, opts Options, logger *zap.Logger) *Scraper {
	if categories == nil {
		categories = category.Default()
	}
	if locks == nil {
		locks = article.NewURLLock()
	}
	if opts.MaxPages <= 0 || opts.MaxPages > MaxPagesLimit {
		opts.MaxPages = MaxPagesLimit
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = defaultFlushEvery
	}
	return &Scraper{
		site:       site,
		categories: categories,
		fetcher:    fetcher,
		store:      store,
		locks:      locks,
		opts:       opts,
		log:        logging.OrNop(logger).With(zap.String("component", "scraper"), zap.String("site", site.Name())),
	}
}

// Site returns the site this scraper crawls.
func (s *Scraper) Site() Site { return s.site }

// Name is the site name.
func (s *Scraper) Name() string { return s.site.Name() }

// Supports reports whether name (or a synonym) maps to sections of this site.
func (s *Scraper) Supports(name string) bool {
	_, _, ok := s.sections(name)
	return ok
}

// Categories lists the canonical category names this site has sections for, in registry order.
func (s *Scraper) Categories() []string {
	var out []string
	for _, c := range s.categories.All() {
		if len(s.site.Fields()[c.Name]) > 0 {
			out = append(out, c.Name)
		}
	}
	return out
}

func (s *Scraper) sections(name string) (category.Category, []string, bool) {
	c, ok := s.categories.Resolve(name)
	if !ok {
		return category.Category{}, nil, false
	}
	paths := s.site.Fields()[c.Name]
	return c, paths, len(paths) > 0
}

// crawl is the state of one Scrape call.
type crawl struct {
	cat     category.Category
	log     *zap.Logger
	saved   int
	fetched int
}

// Scrape crawls every section of the category and returns how many new articles were stored.
// Section and article failures are logged and skipped. Cancellation during the wait between
// articles aborts the whole category with an error wrapping ErrAborted.
func (s *Scraper) Scrape(ctx context.Context, name string) (Result, error) {
	cat, paths, ok := s.sections(name)
	if !ok {
		return Result{Category: name}, fmt.Errorf("%s: %w: %q", s.site.Name(), ErrUnknownCategory, name)
	}
	c := &crawl{cat: cat, log: s.log.With(zap.String("category", cat.Name))}

	for _, path := range paths {
		sectionURL := s.site.SectionURL(path)
		err := ctx.Err()
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrAborted, err)
		} else {
			err = s.scrapeSection(ctx, c, sectionURL)
		}
		if err != nil {
			if errors.Is(err, ErrAborted) {
				c.log.Warn("crawl aborted", zap.Int("saved", c.saved), zap.Error(err))
				return Result{Category: cat.Name, SavedCount: c.saved}, err
			}
			c.log.Warn("section failed", zap.String("section", sectionURL), zap.Error(err))
		}
	}
	if err := ctx.Err(); err != nil {
		c.log.Warn("crawl aborted", zap.Int("saved", c.saved), zap.Error(err))
		return Result{Category: cat.Name, SavedCount: c.saved}, fmt.Errorf("%w: %w", ErrAborted, err)
	}
	c.log.Info("category crawled", zap.Int("saved", c.saved), zap.Int("fetched", c.fetched))
	return Result{Category: cat.Name, SavedCount: c.saved}, nil
}

func (s *Scraper) scrapeSection(ctx context.Context, c *crawl, sectionURL string) error {
	doc, err := s.fetcher.FetchDocument(ctx, s.site.PageURL(sectionURL, 1))
	if err != nil {
		return fmt.Errorf("listing page 1: %w", err)
	}
	pages := min(s.site.PageCount(doc), s.opts.MaxPages)

	var pending []SectionLink
	for page := 1; page <= pages; page++ {
		if page > 1 {
			doc, err = s.fetcher.FetchDocument(ctx, s.site.PageURL(sectionURL, page))
			if err != nil {
				c.log.Warn("listing page failed", zap.String("section", sectionURL), zap.Int("page", page), zap.Error(err))
				break
			}
		}
		links := s.listingLinks(doc)
		if len(links) == 0 {
			break
		}
		seen, err := s.store.ExistsByURL(ctx, links[0])
		if err != nil {
			c.log.Warn("exists check failed", zap.String("url", links[0]), zap.Error(err))
			break
		}
		if seen {
			// listings are newest first, so the rest of the section is already stored
			c.log.Debug("reached stored articles", zap.String("section", sectionURL), zap.Int("page", page))
			break
		}
		for _, l := range links {
			pending = append(pending, SectionLink{CategoryID: c.cat.ID, URL: l})
		}
		if page%s.opts.FlushEvery == 0 {
			if err := s.flush(ctx, c, pending); err != nil {
				return err
			}
			pending = nil
		}
	}
	return s.flush(ctx, c, pending)
}

// listingLinks returns the page's article links, absolute, filtered and deduplicated in order.
func (s *Scraper) listingLinks(doc *goquery.Document) []string {
	var out []string
	seen := make(map[string]struct{})
	doc.Find(s.site.ListingSelector()).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := fetch.Absolute(doc.Url, href)
		if abs == "" {
			return
		}
		u, err := url.Parse(abs)
		if err != nil || !s.site.AcceptURL(u) {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	})
	return out
}

// flush fetches and stores pending links. Only an abort is returned, including a
// cancellation that surfaced as an article failure.
func (s *Scraper) flush(ctx context.Context, c *crawl, pending []SectionLink) error {
	for _, link := range pending {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrAborted, err)
		}
		saved, err := s.saveArticle(ctx, c, link)
		if errors.Is(err, ErrAborted) {
			return err
		}
		if saved {
			c.saved++
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%w: %w", ErrAborted, ctxErr)
			}
			c.log.Warn("article failed", zap.String("url", link.URL), zap.Error(err))
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrAborted, err)
	}
	return nil
}

// saveArticle runs exists-check, fetch, parse and save for one URL while holding its lock.
func (s *Scraper) saveArticle(ctx context.Context, c *crawl, link SectionLink) (bool, error) {
	unlock := s.locks.Lock(link.URL)
	defer unlock()

	exists, err := s.store.ExistsByURL(ctx, link.URL)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if c.fetched > 0 {
		if err := wait(ctx, s.opts.Delay); err != nil {
			return false, fmt.Errorf("%w: %w", ErrAborted, err)
		}
	}
	c.fetched++

	doc, err := s.fetcher.FetchDocument(ctx, link.URL)
	if err != nil {
		return false, err
	}
	a := ParseArticle(doc, s.site, link)
	if a.Title == "" && a.Body == "" {
		c.log.Warn("dropping article without title and body", zap.String("url", link.URL))
		return false, nil
	}
	if err := s.store.Save(ctx, a); err != nil {
		return false, fmt.Errorf("save: %w", err)
	}
	return true, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
