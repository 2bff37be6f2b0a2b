// Package fetch retrieves HTML pages and exposes them as goquery documents.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// maxBodySize bounds how much of a response is read (10 MB).
const maxBodySize = 10 * 1024 * 1024

// Fetcher retrieves and parses HTML pages.
type Fetcher interface {
	FetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error)
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// HTTPFetcher is a Fetcher backed by net/http.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a fetcher with the given per-request timeout and User-Agent.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// NewHTTPFetcherWithClient is intended for tests.
func NewHTTPFetcherWithClient(client *http.Client, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{client: client, userAgent: userAgent}
}

// FetchBytes performs a GET and returns the body decoded to UTF-8.
func (f *HTTPFetcher) FetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// Several news sites answer bare clients with 403.
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	if resp.ContentLength > maxBodySize {
		return nil, fmt.Errorf("fetch %s: content-length %d exceeds limit of %d bytes", rawURL, resp.ContentLength, maxBodySize)
	}

	// Some Korean publishers still serve EUC-KR.
	r, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: decode charset: %w", rawURL, err)
	}
	body, err := io.ReadAll(io.LimitReader(r, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", rawURL, err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("fetch %s: body exceeds limit of %d bytes", rawURL, maxBodySize)
	}
	return body, nil
}

// FetchDocument performs a GET and parses the result as HTML.
func (f *HTTPFetcher) FetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	body, err := f.FetchBytes(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return Parse(body, rawURL)
}

// Parse builds a document from UTF-8 HTML, recording rawURL as the document URL.
func Parse(body []byte, rawURL string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	if u, err := url.Parse(rawURL); err == nil {
		doc.Url = u
	}
	return doc, nil
}

// Absolute resolves href against base. Empty, fragment-only and javascript: hrefs yield "".
func Absolute(base *url.URL, href string) string {
	if href == "" || href[0] == '#' {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.Scheme == "javascript" || ref.Scheme == "mailto" {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if !ref.IsAbs() {
		return ""
	}
	ref.Fragment = ""
	return ref.String()
}
