package scraper

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const hankyungBaseURL = "https://www.hankyung.com"

// DefaultHankyungFields maps category names to hankyung.com section paths.
func DefaultHankyungFields() map[string][]string {
	return map[string][]string{
		"정치":   {"politics/president", "politics/assembly", "politics/defense"},
		"경제":   {"economy/macro", "economy/policy"},
		"금융":   {"financial-market/financial", "financial-market/stock"},
		"부동산":  {"realestate/regulation", "realestate/trade"},
		"산업":   {"industry/manufacturing", "industry/distribution"},
		"IT":   {"it/it-general", "it/telecom"},
		"사회":   {"society/society-general", "society/education"},
		"국제":   {"international/global-general", "international/global-economy"},
		"문화":   {"culture/culture-general", "culture/book"},
		"고용복지": {"economy/job-welfare"},
	}
}

// Hankyung is the Korea Economic Daily site.
type Hankyung struct {
	baseSite
}

// NewHankyung creates the site. Empty config values fall back to the defaults.
func NewHankyung(cfg SiteConfig) *Hankyung {
	return &Hankyung{baseSite: newBaseSite("hankyung", "한국경제", hankyungBaseURL, cfg, DefaultHankyungFields())}
}

func (h *Hankyung) PageURL(sectionURL string, page int) string {
	u, err := url.Parse(sectionURL)
	if err != nil {
		return sectionURL
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

func (h *Hankyung) ListingSelector() string {
	return ".news-list .news-tit a, h2.news-tit a, h3.news-tit a"
}

func (h *Hankyung) DetailSelectors() DetailSelectors {
	return DetailSelectors{
		Title: []Selector{
			{CSS: `meta[property="og:title"]`, Attr: "content"},
			{CSS: "h1.headline"},
		},
		PublishedAt: []Selector{
			{CSS: `meta[property="article:published_time"]`, Attr: "content"},
			{CSS: ".datetime .item:first-child .txt-date"},
			{CSS: ".txt-date"},
		},
		Reporter: []Selector{
			{CSS: `meta[property="dable:author"]`, Attr: "content"},
			{CSS: ".author-detail .name"},
			{CSS: ".byline"},
		},
		Body: []Selector{
			{CSS: "#articletxt"},
			{CSS: ".article-body"},
		},
	}
}

func (h *Hankyung) AcceptURL(u *url.URL) bool {
	return h.sameSite(u) && strings.HasPrefix(u.Path, "/article/")
}

func (h *Hankyung) PageCount(doc *goquery.Document) int {
	return maxPageNumber(doc, ".pagination .page-num, .pagination a, .paging a")
}
