// Package dictionary is a client for the Standard Korean Language Dictionary open API
// (search.do / view.do). Every failure degrades to "no result".
package dictionary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newsword/newsword/pkg/config"
	"github.com/newsword/newsword/pkg/logging"
)

const (
	defaultBaseURL     = "https://stdict.korean.go.kr/api"
	defaultTimeout     = 5 * time.Second
	defaultNum         = 10
	defaultConcurrency = 4
	maxResponseBytes   = 2 << 20
	retryBackoff       = 200 * time.Millisecond
)

// Sense is one meaning of a headword.
type Sense struct {
	No         int
	Definition string
	Category   string
	Type       string
	Origin     string
	Examples   []string
	Synonyms   []string
	Antonyms   []string
}

// Lexeme is a resolved dictionary entry. The top-level fields describe the selected sense;
// Senses holds every sense the view call returned.
type Lexeme struct {
	Lemma      string
	TargetCode int64
	SenseNo    int
	ShoulderNo int
	Definition string
	Category   string
	POS        string
	Synonyms   []string
	Antonyms   []string
	Examples   []string
	Senses     []Sense
}

// WithSense returns a copy of l whose top-level fields describe Senses[i].
// An out-of-range i returns l unchanged.
func (l Lexeme) WithSense(i int) Lexeme {
	if i < 0 || i >= len(l.Senses) {
		return l
	}
	s := l.Senses[i]
	l.SenseNo = s.No
	l.Definition = s.Definition
	l.Category = s.Category
	l.Examples = s.Examples
	l.Synonyms = s.Synonyms
	l.Antonyms = s.Antonyms
	return l
}

// LookupResult is one streamed answer from LookupAll.
type LookupResult struct {
	Index  int
	Lemma  string
	Lexeme *Lexeme
	Found  bool
}

// Client talks to the dictionary API.
type Client struct {
	baseURL     string
	key         string
	num         int
	timeout     time.Duration
	concurrency int
	httpClient  *http.Client
	log         *zap.Logger
}

// New creates a Client from cfg.
func New(cfg config.DictionaryConfig, logger *zap.Logger) *Client {
	return NewWithHTTPClient(cfg, &http.Client{}, logger)
}

// NewWithHTTPClient creates a Client with a caller-supplied http.Client (for testing).
func NewWithHTTPClient(cfg config.DictionaryConfig, hc *http.Client, logger *zap.Logger) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		key:         cfg.Key,
		num:         cfg.Num,
		timeout:     cfg.Timeout,
		concurrency: defaultConcurrency,
		httpClient:  hc,
		log:         logging.OrNop(logger).With(zap.String("component", "dictionary")),
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.num <= 0 {
		c.num = defaultNum
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	return c
}

// FindLemma resolves surface to a dictionary headword. It searches headwords only,
// preferring an exact match and otherwise the best ranked candidate.
func (c *Client) FindLemma(ctx context.Context, surface string) (string, bool) {
	surface = strings.TrimSpace(surface)
	if surface == "" {
		return "", false
	}
	items, err := c.search(ctx, surface, url.Values{
		"advanced": {"y"},
		"target":   {"1"},
		"method":   {"include"},
	})
	if err != nil {
		c.log.Debug("find lemma failed", zap.String("surface", surface), zap.Error(err))
		return "", false
	}
	candidates := make([]string, 0, len(items))
	for _, it := range items {
		candidates = append(candidates, CleanHeadword(it.Word))
	}
	return rankHeadwords(surface, candidates)
}

// Lookup returns the entry for lemma. A strict exact search runs first and a loose
// search only when it comes back empty.
func (c *Client) Lookup(ctx context.Context, lemma string) (*Lexeme, bool) {
	lemma = strings.TrimSpace(lemma)
	if lemma == "" {
		return nil, false
	}
	items, err := c.search(ctx, lemma, url.Values{
		"advanced": {"y"},
		"target":   {"1"},
		"method":   {"exact"},
	})
	if err != nil {
		c.log.Debug("strict search failed", zap.String("lemma", lemma), zap.Error(err))
	}
	if len(items) == 0 {
		items, err = c.search(ctx, lemma, nil)
		if err != nil {
			c.log.Debug("loose search failed", zap.String("lemma", lemma), zap.Error(err))
			return nil, false
		}
	}
	if len(items) == 0 {
		return nil, false
	}

	picked := items[0]
	for _, it := range items {
		if CleanHeadword(it.Word) == lemma {
			picked = it
			break
		}
	}

	lex := fromSearchItem(picked)
	if lex.TargetCode > 0 {
		senses, err := c.view(ctx, lex.TargetCode)
		if err != nil {
			c.log.Debug("view failed, using search data", zap.Int64("target_code", lex.TargetCode), zap.Error(err))
		} else if len(senses) > 0 {
			lex.Senses = senses
			lex = lex.WithSense(0)
		}
	}
	return &lex, true
}

// LookupAll looks up lemmas concurrently. Results arrive in completion order, each tagged
// with its input index; the channel closes once every lemma has been answered.
func (c *Client) LookupAll(ctx context.Context, lemmas []string) <-chan LookupResult {
	out := make(chan LookupResult, len(lemmas))
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	go func() {
		defer close(out)
		for i, lemma := range lemmas {
			g.Go(func() error {
				lex, ok := c.Lookup(ctx, lemma)
				out <- LookupResult{Index: i, Lemma: lemma, Lexeme: lex, Found: ok}
				return nil
			})
		}
		_ = g.Wait()
	}()
	return out
}

func fromSearchItem(it searchItem) Lexeme {
	lex := Lexeme{
		Lemma:      CleanHeadword(it.Word),
		TargetCode: int64(it.TargetCode),
		ShoulderNo: int(parseNumeric(it.SupNo)),
		POS:        it.POS,
		Synonyms:   []string{},
		Antonyms:   []string{},
		Examples:   []string{},
	}
	senses, err := decodeList[searchSense](it.Sense)
	if err == nil && len(senses) > 0 {
		lex.Definition = strings.TrimSpace(senses[0].Definition)
		lex.SenseNo = int(senses[0].SenseNo)
	}
	return lex
}

func (c *Client) search(ctx context.Context, q string, extra url.Values) ([]searchItem, error) {
	params := url.Values{
		"key":      {c.key},
		"q":        {q},
		"req_type": {"json"},
		"start":    {"1"},
		"num":      {fmt.Sprint(c.num)},
	}
	for k, v := range extra {
		params[k] = v
	}
	body, err := c.get(ctx, "/search.do", params)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		// the API answers an empty body for zero hits
		return nil, nil
	}
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}
	return decodeList[searchItem](resp.Channel.Item)
}

func (c *Client) view(ctx context.Context, targetCode int64) ([]Sense, error) {
	body, err := c.get(ctx, "/view.do", url.Values{
		"key":         {c.key},
		"target_code": {fmt.Sprint(targetCode)},
		"req_type":    {"json"},
	})
	if err != nil {
		return nil, err
	}
	var resp viewResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode view: %w", err)
	}
	items, err := decodeList[viewItem](resp.Channel.Item)
	if err != nil {
		return nil, fmt.Errorf("decode view items: %w", err)
	}
	var senses []Sense
	for _, it := range items {
		raw, err := decodeList[viewSense](it.Sense)
		if err != nil {
			return nil, fmt.Errorf("decode view senses: %w", err)
		}
		for _, s := range raw {
			senses = append(senses, toSense(s, len(senses)+1))
		}
	}
	return senses, nil
}

func toSense(s viewSense, fallbackNo int) Sense {
	out := Sense{
		No:         int(s.SenseNo),
		Definition: strings.TrimSpace(s.Definition),
		Category:   strings.TrimSpace(s.Cat),
		Type:       s.Type,
		Origin:     s.Origin,
		Examples:   []string{},
		Synonyms:   []string{},
		Antonyms:   []string{},
	}
	if out.No <= 0 {
		out.No = fallbackNo
	}
	if ex, err := decodeList[exampleInfo](s.Examples); err == nil {
		for _, e := range ex {
			if t := strings.TrimSpace(e.Example); t != "" {
				out.Examples = append(out.Examples, t)
			}
		}
	}
	if lex, err := decodeList[lexicalInfo](s.Lexical); err == nil {
		for _, l := range lex {
			w := CleanHeadword(l.Word)
			if w == "" {
				continue
			}
			switch l.Type {
			case "비슷한말":
				out.Synonyms = append(out.Synonyms, w)
			case "반대말":
				out.Antonyms = append(out.Antonyms, w)
			}
		}
	}
	return out
}

// get issues one GET under the client timeout, retrying once on a network error or 5xx.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqURL := c.baseURL + path + "?" + params.Encode()
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff):
			}
			c.log.Debug("dictionary retry", zap.String("path", path), zap.Error(lastErr))
		}
		body, retry, err := c.do(ctx, reqURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, reqURL string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, false, fmt.Errorf("read body: %w", err)
	}
	return body, false, nil
}
