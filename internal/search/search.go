// Package search provides web search backends that return ranked result hits.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Hit is a single web search result.
type Hit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Backend runs a web search and returns at most maxResults hits in provider order.
// An empty result set is returned as an empty slice, not an error.
type Backend interface {
	Search(ctx context.Context, query string, maxResults int) ([]Hit, error)
}

// Provider names a search backend.
type Provider string

// Provider constants define supported search backends
const (
	// ProviderGoogle is Google Programmable Search (Custom Search JSON API)
	ProviderGoogle Provider = "google"
	// ProviderDuckDuckGo scrapes the DuckDuckGo lite HTML page
	ProviderDuckDuckGo Provider = "duckduckgo"
)

// Options configures backend construction.
type Options struct {
	Provider Provider
	APIKey   string // Google only
	CX       string // Google only
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Error represents a failed search call.
type Error struct {
	Provider Provider
	Query    string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s search for %q: %s: %v", e.Provider, e.Query, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s search for %q: %s", e.Provider, e.Query, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewBackend creates a search backend based on options.
// Google is used when credentials are present, otherwise DuckDuckGo.
func NewBackend(ctx context.Context, opts Options) (Backend, error) {
	provider := opts.Provider
	if provider == "" {
		provider = ProviderDuckDuckGo
		if opts.APIKey != "" && opts.CX != "" {
			provider = ProviderGoogle
		}
	}

	switch provider {
	case ProviderGoogle:
		return NewGoogleSearch(ctx, opts.APIKey, opts.CX, opts.Timeout)
	case ProviderDuckDuckGo:
		return NewDuckDuckGo(opts.Timeout, opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", provider)
	}
}

// clampResults bounds maxResults to [1, limit].
func clampResults(maxResults, limit int) int {
	if maxResults < 1 {
		return 1
	}
	if maxResults > limit {
		return limit
	}
	return maxResults
}
