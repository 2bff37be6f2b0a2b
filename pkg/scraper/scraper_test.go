package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsword/newsword/pkg/article"
	"github.com/newsword/newsword/pkg/fetch"
)

// newsServer serves Hankyung-shaped listing and article pages.
type newsServer struct {
	srv *httptest.Server

	mu        sync.Mutex
	listings  map[string][][]string // section path -> pages -> article ids
	pager     map[string]int        // section path -> page count shown in the widget
	hits      map[string]int
	onArticle func(id string)
}

func newNewsServer(t *testing.T) *newsServer {
	t.Helper()
	ns := &newsServer{
		listings: make(map[string][][]string),
		pager:    make(map[string]int),
		hits:     make(map[string]int),
	}
	ns.srv = httptest.NewServer(http.HandlerFunc(ns.handle))
	t.Cleanup(ns.srv.Close)
	return ns
}

func (ns *newsServer) handle(w http.ResponseWriter, r *http.Request) {
	ns.mu.Lock()
	ns.hits[r.URL.RequestURI()]++
	onArticle := ns.onArticle
	ns.mu.Unlock()

	if id, ok := strings.CutPrefix(r.URL.Path, "/article/"); ok {
		if onArticle != nil {
			onArticle(id)
		}
		switch id {
		case "broken":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "empty":
			fmt.Fprint(w, `<html><head></head><body></body></html>`)
		default:
			fmt.Fprintf(w, `<html><head><meta property="og:title" content="기사 %s"></head>
<body><div id="articletxt">본문 %s</div></body></html>`, id, id)
		}
		return
	}

	section := strings.Trim(r.URL.Path, "/")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	ns.mu.Lock()
	pages := ns.listings[section]
	shown := ns.pager[section]
	ns.mu.Unlock()
	if shown == 0 {
		shown = len(pages)
	}

	var b strings.Builder
	b.WriteString(`<html><body><ul class="news-list">`)
	if page <= len(pages) {
		for _, id := range pages[page-1] {
			fmt.Fprintf(&b, `<li><h3 class="news-tit"><a href="/article/%s">%s</a></h3></li>`, id, id)
		}
		b.WriteString(`<li><h3 class="news-tit"><a href="https://evil.example/article/x">ad</a></h3></li>`)
		b.WriteString(`<li><h3 class="news-tit"><a href="/economy/other">section</a></h3></li>`)
	}
	b.WriteString(`</ul><div class="pagination">`)
	for i := 1; i <= shown; i++ {
		fmt.Fprintf(&b, `<a href="?page=%d">%d</a>`, i, i)
	}
	b.WriteString(`</div></body></html>`)
	fmt.Fprint(w, b.String())
}

func (ns *newsServer) hitCount(uri string) int {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.hits[uri]
}

func (ns *newsServer) articleURL(id string) string {
	return ns.srv.URL + "/article/" + id
}

func newTestScraper(ns *newsServer, store article.Store, locks *article.URLLock, opts Options, fields map[string][]string) *Scraper {
	site := NewHankyung(SiteConfig{BaseURL: ns.srv.URL, Fields: fields})
	f := fetch.NewHTTPFetcherWithClient(ns.srv.Client(), "test-agent")
	return New(site, nil, f, store, locks, opts, nil)
}

var economyFields = map[string][]string{"경제": {"economy/macro"}, "고용복지": {"economy/job"}}

func TestScrapeUnknownCategory(t *testing.T) {
	ns := newNewsServer(t)
	store := article.NewMemoryStore()
	s := newTestScraper(ns, store, nil, Options{}, economyFields)

	for _, name := range []string{"스포츠", "", "과학"} {
		res, err := s.Scrape(context.Background(), name)
		assert.ErrorIs(t, err, ErrUnknownCategory, name)
		assert.Zero(t, res.SavedCount)
		assert.False(t, s.Supports(name))
	}
	assert.Zero(t, store.Count())
	ns.mu.Lock()
	assert.Empty(t, ns.hits)
	ns.mu.Unlock()
}

func TestScrapeSavesAcrossPagesWithoutDuplicates(t *testing.T) {
	ns := newNewsServer(t)
	ns.listings["economy/macro"] = [][]string{{"a1", "a2", "a1"}, {"a2", "a3"}, {"a4"}}
	store := article.NewMemoryStore()
	s := newTestScraper(ns, store, nil, Options{}, economyFields)

	res, err := s.Scrape(context.Background(), "경제")
	require.NoError(t, err)
	assert.Equal(t, 4, res.SavedCount)
	assert.Equal(t, "경제", res.Category)
	assert.Equal(t, 4, store.Count())

	for _, id := range []string{"a1", "a2", "a3", "a4"} {
		assert.Equal(t, 1, ns.hitCount("/article/"+id), id)
		a, err := store.FindByURL(context.Background(), ns.articleURL(id))
		require.NoError(t, err)
		assert.Equal(t, "기사 "+id, a.Title)
		assert.Equal(t, "본문 "+id, a.Body)
		assert.Equal(t, 2, a.CategoryID)
		assert.Equal(t, "한국경제", a.Publisher)
	}

	// the second run stops at the first stored link
	res, err = s.Scrape(context.Background(), "경제")
	require.NoError(t, err)
	assert.Zero(t, res.SavedCount)
	assert.Equal(t, 4, store.Count())
	assert.Equal(t, 1, ns.hitCount("/economy/macro?page=2"))
}

func TestScrapeCapsPages(t *testing.T) {
	ns := newNewsServer(t)
	ns.listings["economy/macro"] = [][]string{{"p1"}, {"p2"}, {"p3"}}
	ns.pager["economy/macro"] = 12
	store := article.NewMemoryStore()
	s := newTestScraper(ns, store, nil, Options{MaxPages: 2}, economyFields)

	res, err := s.Scrape(context.Background(), "경제")
	require.NoError(t, err)
	assert.Equal(t, 2, res.SavedCount)
	assert.Zero(t, ns.hitCount("/economy/macro?page=3"))
}

func TestScrapeNeverExceedsPageLimit(t *testing.T) {
	ns := newNewsServer(t)
	var pages [][]string
	for i := 1; i <= 9; i++ {
		pages = append(pages, []string{fmt.Sprintf("q%d", i)})
	}
	ns.listings["economy/macro"] = pages
	store := article.NewMemoryStore()
	s := newTestScraper(ns, store, nil, Options{MaxPages: 9}, economyFields)

	res, err := s.Scrape(context.Background(), "경제")
	require.NoError(t, err)
	assert.Equal(t, MaxPagesLimit, res.SavedCount)
	assert.Equal(t, 1, ns.hitCount("/economy/macro?page=5"))
	assert.Zero(t, ns.hitCount("/economy/macro?page=6"))
	assert.Zero(t, ns.hitCount("/article/q6"))
}

func TestScrapeStopsAtStoredFirstLink(t *testing.T) {
	ns := newNewsServer(t)
	ns.listings["economy/macro"] = [][]string{{"n1", "n2"}, {"old1", "n3"}, {"old2"}}
	store := article.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), &article.Article{URL: ns.articleURL("old1")}))
	s := newTestScraper(ns, store, nil, Options{}, economyFields)

	res, err := s.Scrape(context.Background(), "경제")
	require.NoError(t, err)
	assert.Equal(t, 2, res.SavedCount)
	assert.Zero(t, ns.hitCount("/article/n3"), "links after the stored page are not collected")
	assert.Zero(t, ns.hitCount("/economy/macro?page=3"))
}

func TestScrapeFlushesEveryNPages(t *testing.T) {
	ns := newNewsServer(t)
	ns.listings["economy/macro"] = [][]string{{"f1"}, {"f2"}, {"f3"}}
	store := article.NewMemoryStore()

	var order []string
	var mu sync.Mutex
	ns.onArticle = func(id string) {
		page3 := ns.hitCount("/economy/macro?page=3")
		mu.Lock()
		defer mu.Unlock()
		order = append(order, fmt.Sprintf("article:%s:page3=%d", id, page3))
	}
	s := newTestScraper(ns, store, nil, Options{FlushEvery: 2}, economyFields)

	res, err := s.Scrape(context.Background(), "경제")
	require.NoError(t, err)
	assert.Equal(t, 3, res.SavedCount)
	assert.Equal(t, []string{"article:f1:page3=0", "article:f2:page3=0", "article:f3:page3=1"}, order)
}

func TestScrapeIsolatesArticleFailures(t *testing.T) {
	ns := newNewsServer(t)
	ns.listings["economy/macro"] = [][]string{{"ok1", "empty", "broken", "ok2"}}
	store := article.NewMemoryStore()
	s := newTestScraper(ns, store, nil, Options{}, economyFields)

	res, err := s.Scrape(context.Background(), "경제")
	require.NoError(t, err)
	assert.Equal(t, 2, res.SavedCount)
	ok, err := store.ExistsByURL(context.Background(), ns.articleURL("empty"))
	require.NoError(t, err)
	assert.False(t, ok, "articles without title and body are dropped")
}

func TestScrapeIsolatesSectionFailures(t *testing.T) {
	ns := newNewsServer(t)
	ns.listings["economy/macro"] = [][]string{{"s1"}}
	store := article.NewMemoryStore()
	fields := map[string][]string{"경제": {"article/broken", "economy/macro"}}
	s := newTestScraper(ns, store, nil, Options{}, fields)

	res, err := s.Scrape(context.Background(), "경제")
	require.NoError(t, err)
	assert.Equal(t, 1, res.SavedCount)
}

func TestScrapeResolvesSynonyms(t *testing.T) {
	ns := newNewsServer(t)
	ns.listings["economy/job"] = [][]string{{"j1"}}
	store := article.NewMemoryStore()
	s := newTestScraper(ns, store, nil, Options{}, economyFields)

	require.True(t, s.Supports("복지"))
	res, err := s.Scrape(context.Background(), "복지")
	require.NoError(t, err)
	assert.Equal(t, 1, res.SavedCount)
	assert.Equal(t, "고용복지", res.Category)
	a, err := store.FindByURL(context.Background(), ns.articleURL("j1"))
	require.NoError(t, err)
	assert.Equal(t, 11, a.CategoryID)
}

// cancelOnSave cancels the crawl shortly after the first article is stored,
// while the scraper is sleeping before the next fetch.
type cancelOnSave struct {
	article.Store
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancelOnSave) Save(ctx context.Context, a *article.Article) error {
	err := c.Store.Save(ctx, a)
	c.once.Do(func() {
		go func() {
			time.Sleep(50 * time.Millisecond)
			c.cancel()
		}()
	})
	return err
}

func TestScrapeAbortsWhenCancelledDuringDelay(t *testing.T) {
	ns := newNewsServer(t)
	ns.listings["economy/macro"] = [][]string{{"d1", "d2", "d3"}}
	ns.listings["economy/job"] = [][]string{{"j1"}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := &cancelOnSave{Store: article.NewMemoryStore(), cancel: cancel}

	fields := map[string][]string{"경제": {"economy/macro", "economy/job"}}
	s := newTestScraper(ns, store, nil, Options{Delay: time.Hour}, fields)

	done := make(chan struct{})
	var res Result
	var err error
	go func() {
		defer close(done)
		res, err = s.Scrape(ctx, "경제")
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scrape did not abort")
	}
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, 1, res.SavedCount)
	assert.Zero(t, ns.hitCount("/article/d2"))
	assert.Zero(t, ns.hitCount("/economy/job?page=1"), "later sections are not crawled")
}

func TestScrapeAbortsWhenCancelledDuringLastFetch(t *testing.T) {
	ns := newNewsServer(t)
	ns.listings["economy/macro"] = [][]string{{"last"}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ns.onArticle = func(string) { cancel() }
	store := article.NewMemoryStore()
	s := newTestScraper(ns, store, nil, Options{}, economyFields)

	_, err := s.Scrape(ctx, "경제")
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentScrapesStoreEachURLOnce(t *testing.T) {
	ns := newNewsServer(t)
	ns.listings["economy/macro"] = [][]string{{"c1", "c2", "c3"}}
	ns.listings["economy/job"] = [][]string{{"c4", "c3", "c2"}}
	store := article.NewMemoryStore()
	locks := article.NewURLLock()

	a := newTestScraper(ns, store, locks, Options{}, map[string][]string{"경제": {"economy/macro"}})
	b := newTestScraper(ns, store, locks, Options{}, map[string][]string{"경제": {"economy/job"}})

	var wg sync.WaitGroup
	var total int
	var mu sync.Mutex
	for _, s := range []*Scraper{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Scrape(context.Background(), "경제")
			assert.NoError(t, err)
			mu.Lock()
			total += res.SavedCount
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 4, total)
	assert.Equal(t, 4, store.Count())
}

func TestCategories(t *testing.T) {
	ns := newNewsServer(t)
	s := newTestScraper(ns, article.NewMemoryStore(), nil, Options{}, economyFields)
	assert.Equal(t, []string{"경제", "고용복지"}, s.Categories())
	assert.Equal(t, "hankyung", s.Site().Name())
}
