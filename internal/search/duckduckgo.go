package search

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/research-agent/internal/fetch"
)

const (
	duckDuckGoEndpoint = "https://lite.duckduckgo.com/lite/"
	duckDuckGoMax      = 30
	// duckDuckGoUserAgent matches a desktop browser; the lite page rejects obvious bots.
	duckDuckGoUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// DuckDuckGo implements Backend by scraping the DuckDuckGo lite HTML interface.
type DuckDuckGo struct {
	endpoint    string
	fetchOpts   *fetch.Options
	logger      *slog.Logger
	minInterval time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewDuckDuckGo creates a DuckDuckGo backend with the given request timeout.
func NewDuckDuckGo(timeout time.Duration, logger *slog.Logger) *DuckDuckGo {
	if logger == nil {
		logger = slog.Default()
	}
	opts := fetch.DefaultOptions()
	if timeout > 0 {
		opts.Timeout = timeout
	}
	opts.UserAgent = duckDuckGoUserAgent
	return &DuckDuckGo{
		endpoint:    duckDuckGoEndpoint,
		fetchOpts:   opts,
		logger:      logger,
		minInterval: time.Second,
	}
}

// WithEndpoint overrides the lite page URL.
func (d *DuckDuckGo) WithEndpoint(endpoint string) *DuckDuckGo {
	d.endpoint = endpoint
	return d
}

// WithMinInterval sets the minimum spacing between outgoing requests.
func (d *DuckDuckGo) WithMinInterval(interval time.Duration) *DuckDuckGo {
	d.minInterval = interval
	return d
}

// Search posts the query to the lite page and parses result links and snippets.
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return []Hit{}, nil
	}

	if err := d.throttle(ctx); err != nil {
		return nil, &Error{Provider: ProviderDuckDuckGo, Query: query, Message: "cancelled while throttled", Cause: err}
	}

	form := url.Values{}
	form.Set("q", query)

	result, err := fetch.PostForm(ctx, d.endpoint, form, d.fetchOpts)
	if err != nil {
		return nil, &Error{Provider: ProviderDuckDuckGo, Query: query, Message: "request failed", Cause: err}
	}

	hits, err := parseLiteResults(result.HTML, clampResults(maxResults, duckDuckGoMax))
	if err != nil {
		return nil, &Error{Provider: ProviderDuckDuckGo, Query: query, Message: "unparseable response", Cause: err}
	}

	d.logger.Debug("duckduckgo search completed", "query", query, "hits", len(hits))
	return hits, nil
}

// throttle spaces requests at least minInterval apart.
func (d *DuckDuckGo) throttle(ctx context.Context) error {
	if d.minInterval <= 0 {
		return nil
	}

	d.mu.Lock()
	next := d.last.Add(d.minInterval)
	now := time.Now()
	if next.Before(now) {
		next = now
	}
	d.last = next
	d.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseLiteResults extracts result links and snippets from the lite HTML page.
// Links and snippets appear in matching order, one snippet row per result row.
func parseLiteResults(html string, limit int) ([]Hit, error) {
	doc, err := fetch.ParseHTML(html)
	if err != nil {
		return nil, err
	}

	var snippets []string
	doc.Find("td.result-snippet").Each(func(_ int, s *goquery.Selection) {
		snippets = append(snippets, fetch.CleanText(s.Text()))
	})

	hits := []Hit{}
	doc.Find("a.result-link").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		target := resolveResultURL(href)
		title := fetch.CleanText(s.Text())
		if target == "" || title == "" {
			return true
		}

		hit := Hit{Title: title, URL: target}
		if i < len(snippets) {
			hit.Snippet = snippets[i]
		}
		hits = append(hits, hit)
		return len(hits) < limit
	})

	return hits, nil
}

// resolveResultURL unwraps DuckDuckGo redirect links (/l/?uddg=...) and drops ad links.
func resolveResultURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	if strings.HasSuffix(parsed.Hostname(), "duckduckgo.com") {
		if strings.HasPrefix(parsed.Path, "/l/") {
			return parsed.Query().Get("uddg")
		}
		return ""
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return href
}
