// Package render fetches a web page and strips it down to its readable
// content markup: scripts, styles, navigation, footers, asides and iframes
// are removed before the pipeline ever sees the document.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "quizsmith/1.0 (+https://github.com/quizsmith/quizsmith)"
)

// ErrPageLoad marks timeout and navigation failures, as opposed to other
// rendering errors. Callers match it with errors.Is.
var ErrPageLoad = errors.New("page failed to load")

// noiseSelectors are elements removed before the page reaches the pipeline.
var noiseSelectors = []string{
	"script", "style", "noscript",
	"nav", "footer", "header", "aside",
	"iframe", "svg", "canvas",
	"form", "button", "input", "select", "textarea",
}

// Renderer produces cleaned page markup for a URL.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// HTTPRenderer fetches pages over plain HTTP and cleans them with goquery.
type HTTPRenderer struct {
	client *http.Client
}

// NewHTTPRenderer creates an HTTPRenderer. A timeout <= 0 falls back to 30s.
func NewHTTPRenderer(timeout time.Duration) *HTTPRenderer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPRenderer{
		client: &http.Client{Timeout: timeout},
	}
}

// Render fetches the URL and returns the cleaned body markup.
// Timeouts and unreachable hosts are reported as ErrPageLoad.
func (r *HTTPRenderer) Render(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetching %s: %v", ErrPageLoad, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d for %s", ErrPageLoad, resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	return Clean(string(body))
}

// Clean strips noise elements from raw HTML and returns the body markup.
func Clean(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		return "", fmt.Errorf("no body element in document")
	}

	out, err := body.First().Html()
	if err != nil {
		return "", fmt.Errorf("serializing content: %w", err)
	}
	return out, nil
}

// PageCache is the cache surface CachedRenderer needs.
type PageCache interface {
	GetPage(ctx context.Context, url string) (string, bool, error)
	SetPage(ctx context.Context, url, markup string, ttl time.Duration) error
}

// CachedRenderer wraps another Renderer with a markup cache. Cache failures
// degrade to a direct render, never to a request failure.
type CachedRenderer struct {
	inner Renderer
	cache PageCache
	ttl   time.Duration
}

// NewCachedRenderer creates a CachedRenderer.
func NewCachedRenderer(inner Renderer, cache PageCache, ttl time.Duration) *CachedRenderer {
	return &CachedRenderer{inner: inner, cache: cache, ttl: ttl}
}

func (c *CachedRenderer) Render(ctx context.Context, url string) (string, error) {
	if markup, ok, err := c.cache.GetPage(ctx, url); err == nil && ok {
		return markup, nil
	}

	markup, err := c.inner.Render(ctx, url)
	if err != nil {
		return "", err
	}

	_ = c.cache.SetPage(ctx, url, markup, c.ttl)
	return markup, nil
}
