package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const scienceTimesBaseURL = "https://www.sciencetimes.co.kr"

// DefaultScienceTimesFields maps category names to sciencetimes.co.kr section paths.
func DefaultScienceTimesFields() map[string][]string {
	return map[string][]string{
		"과학": {"category/basic-science", "category/life-science", "category/space"},
		"IT": {"category/ict"},
	}
}

// ScienceTimes is the Korea Foundation for the Advancement of Science & Creativity news site.
type ScienceTimes struct {
	baseSite
}

// NewScienceTimes creates the site. Empty config values fall back to the defaults.
func NewScienceTimes(cfg SiteConfig) *ScienceTimes {
	return &ScienceTimes{baseSite: newBaseSite("sciencetimes", "사이언스타임즈", scienceTimesBaseURL, cfg, DefaultScienceTimesFields())}
}

// PageURL uses WordPress style paging: the first page is the section itself.
func (s *ScienceTimes) PageURL(sectionURL string, page int) string {
	if page <= 1 {
		return sectionURL
	}
	u, err := url.Parse(sectionURL)
	if err != nil {
		return sectionURL
	}
	u.Path = strings.TrimRight(u.Path, "/") + fmt.Sprintf("/page/%d/", page)
	return u.String()
}

func (s *ScienceTimes) ListingSelector() string {
	return "article h2.entry-title a, .post-list .title a, .sub_list .subject a"
}

func (s *ScienceTimes) DetailSelectors() DetailSelectors {
	return DetailSelectors{
		Title: []Selector{
			{CSS: `meta[property="og:title"]`, Attr: "content"},
			{CSS: "h1.entry-title"},
			{CSS: ".atc_tit"},
		},
		PublishedAt: []Selector{
			{CSS: `meta[property="article:published_time"]`, Attr: "content"},
			{CSS: "time.entry-date", Attr: "datetime"},
			{CSS: ".atc_info .date"},
		},
		Reporter: []Selector{
			{CSS: `meta[name="author"]`, Attr: "content"},
			{CSS: ".atc_info .writer"},
		},
		Body: []Selector{
			{CSS: ".entry-content"},
			{CSS: ".atc_cont"},
		},
	}
}

func (s *ScienceTimes) AcceptURL(u *url.URL) bool {
	return s.sameSite(u) && strings.Contains(u.Path, "/news/")
}

func (s *ScienceTimes) PageCount(doc *goquery.Document) int {
	return maxPageNumber(doc, ".page-numbers, .pagination a")
}
