package scraper

import (
	"bytes"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/newsword/newsword/pkg/article"
	"github.com/newsword/newsword/pkg/fetch"
)

// SectionLink is a listing entry waiting to be fetched.
type SectionLink struct {
	CategoryID int
	URL        string
}

var kst = time.FixedZone("KST", 9*60*60)

var (
	genericTitle = []Selector{
		{CSS: `meta[name="title"]`, Attr: "content"},
		{CSS: "h1"},
		{CSS: "h2"},
		{CSS: "title"},
	}
	genericPublishedAt = []Selector{
		{CSS: `meta[name="pubdate"]`, Attr: "content"},
		{CSS: "time[datetime]", Attr: "datetime"},
	}
	genericReporter = []Selector{
		{CSS: `meta[name="author"]`, Attr: "content"},
	}

	// (?s) allows dot to match newlines, (?i) makes it case-insensitive
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
	// leading labels such as "입력 " or "기사입력 :" in front of a timestamp
	reDatePrefix = regexp.MustCompile(`^[^0-9]*`)
)

// noise is removed from body candidates before their text is taken.
const noise = "script, style, noscript, iframe, figure, figcaption, button, .ad, .article-ad"

// ParseArticle extracts an article from a detail page. Every field takes the first
// non-empty candidate: site selectors first, then generic ones. The body falls back to
// <article>, then the page's paragraphs, then readability.
func ParseArticle(doc *goquery.Document, site Site, link SectionLink) *article.Article {
	sel := site.DetailSelectors()
	a := &article.Article{
		CategoryID: link.CategoryID,
		URL:        link.URL,
		Publisher:  site.Publisher(),
		Title:      firstMatch(doc, append(sel.Title, genericTitle...)),
		Reporter:   firstMatch(doc, append(sel.Reporter, genericReporter...)),
	}
	a.PublishedAt = normalizePublishedAt(firstMatch(doc, append(sel.PublishedAt, genericPublishedAt...)))
	a.Body = extractBody(doc, sel.Body)
	return a
}

func firstMatch(doc *goquery.Document, cands []Selector) string {
	for _, c := range cands {
		s := doc.Find(c.CSS).First()
		if s.Length() == 0 {
			continue
		}
		var v string
		if c.Attr != "" {
			v, _ = s.Attr(c.Attr)
		} else {
			v = s.Text()
		}
		if v = fetch.CleanText(v); v != "" {
			return v
		}
	}
	return ""
}

func extractBody(doc *goquery.Document, cands []Selector) string {
	for _, c := range cands {
		if s := doc.Find(c.CSS).First(); s.Length() > 0 {
			if t := blockText(s); t != "" {
				return t
			}
		}
	}
	if s := doc.Find("article").First(); s.Length() > 0 {
		if t := blockText(s); t != "" {
			return t
		}
	}
	var paras []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if t := fetch.CleanText(p.Text()); t != "" {
			paras = append(paras, t)
		}
	})
	if len(paras) > 0 {
		return strings.Join(paras, "\n")
	}
	return readabilityText(doc)
}

// blockText renders s as text with line breaks at <br> and block boundaries.
func blockText(s *goquery.Selection) string {
	c := s.Clone()
	c.Find(noise).Remove()
	var b strings.Builder
	for _, n := range c.Nodes {
		writeNode(&b, n)
	}
	return fetch.CleanText(b.String())
}

func writeNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "br" {
			b.WriteByte('\n')
			return
		}
	}
	block := n.Type == html.ElementNode && isBlock(n.Data)
	if block {
		b.WriteByte('\n')
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		writeNode(b, ch)
	}
	if block {
		b.WriteByte('\n')
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "section", "li", "ul", "ol", "blockquote", "tr", "table",
		"h1", "h2", "h3", "h4", "h5", "h6", "article", "header", "footer":
		return true
	}
	return false
}

func readabilityText(doc *goquery.Document) string {
	raw, err := doc.Html()
	if err != nil {
		return ""
	}
	// ruby annotations would otherwise be duplicated into the text
	cleaned := reRP.ReplaceAllString(reRT.ReplaceAllString(raw, ""), "")
	art, err := readability.FromReader(bytes.NewReader([]byte(cleaned)), doc.Url)
	if err != nil {
		return ""
	}
	return fetch.CleanText(art.TextContent)
}

// normalizePublishedAt converts a parseable timestamp to RFC3339, reading zone-less values
// as KST. Unparseable text is kept as it was.
func normalizePublishedAt(raw string) string {
	if raw == "" {
		return ""
	}
	candidate := strings.TrimSpace(reDatePrefix.ReplaceAllString(raw, ""))
	if candidate == "" {
		return raw
	}
	t, err := dateparse.ParseIn(candidate, kst)
	if err != nil {
		return raw
	}
	return t.Format(time.RFC3339)
}
