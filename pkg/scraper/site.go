package scraper

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selector is one extraction candidate. Attr empty means the element's text.
type Selector struct {
	CSS  string
	Attr string
}

// DetailSelectors lists candidates per article field in priority order.
type DetailSelectors struct {
	Title       []Selector
	PublishedAt []Selector
	Reporter    []Selector
	Body        []Selector
}

// SiteConfig is the injectable part of a site: where it lives and which section paths
// each category name maps to.
type SiteConfig struct {
	BaseURL string
	Fields  map[string][]string
}

// Site captures what differs between publishers. The crawl itself lives in Scraper.
type Site interface {
	Name() string
	Publisher() string
	// Fields maps canonical category names to section paths.
	Fields() map[string][]string
	SectionURL(path string) string
	PageURL(sectionURL string, page int) string
	ListingSelector() string
	DetailSelectors() DetailSelectors
	// AcceptURL reports whether a listing link points at an article of this site.
	AcceptURL(u *url.URL) bool
	// PageCount reads the pagination widget of a listing page; 1 when there is none.
	PageCount(doc *goquery.Document) int
}

type baseSite struct {
	name      string
	publisher string
	base      *url.URL
	fields    map[string][]string
}

func newBaseSite(name, publisher, defaultBase string, cfg SiteConfig, defaultFields map[string][]string) baseSite {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		raw = defaultBase
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		u, _ = url.Parse(defaultBase)
	}
	fields := cfg.Fields
	if fields == nil {
		fields = defaultFields
	}
	return baseSite{name: name, publisher: publisher, base: u, fields: fields}
}

func (b baseSite) Name() string                { return b.name }
func (b baseSite) Publisher() string           { return b.publisher }
func (b baseSite) Fields() map[string][]string { return b.fields }

func (b baseSite) SectionURL(path string) string {
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return ""
	}
	base := *b.base
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base.ResolveReference(ref).String()
}

// sameSite reports whether u is on the site's host or one of its subdomains.
func (b baseSite) sameSite(u *url.URL) bool {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	want := strings.TrimPrefix(strings.ToLower(b.base.Hostname()), "www.")
	return host == want || strings.HasSuffix(host, "."+want)
}

// maxPageNumber returns the largest integer text among elements matching sel, or 1.
func maxPageNumber(doc *goquery.Document, sel string) int {
	maxPage := 1
	doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(s.Text())); err == nil && n > maxPage {
			maxPage = n
		}
	})
	return maxPage
}
