package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// googleMaxResults is the page size limit of the Custom Search API.
const googleMaxResults = 10

// GoogleSearch implements Backend using the Google Custom Search JSON API.
type GoogleSearch struct {
	svc     *customsearch.Service
	cx      string
	timeout time.Duration
}

// NewGoogleSearch creates a Google Custom Search backend.
// Extra client options are appended after the API key (tests use option.WithEndpoint).
func NewGoogleSearch(ctx context.Context, apiKey, cx string, timeout time.Duration, extra ...option.ClientOption) (*GoogleSearch, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google search API key is required")
	}
	if cx == "" {
		return nil, fmt.Errorf("google search engine ID (cx) is required")
	}

	opts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, extra...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}

	return &GoogleSearch{
		svc:     svc,
		cx:      cx,
		timeout: timeout,
	}, nil
}

// Search runs one Custom Search query.
func (g *GoogleSearch) Search(ctx context.Context, query string, maxResults int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return []Hit{}, nil
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	num := clampResults(maxResults, googleMaxResults)
	resp, err := g.svc.Cse.List().Cx(g.cx).Q(query).Num(int64(num)).Context(ctx).Do()
	if err != nil {
		return nil, &Error{
			Provider: ProviderGoogle,
			Query:    query,
			Message:  "request failed",
			Cause:    err,
		}
	}

	hits := make([]Hit, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil {
			continue
		}
		hits = append(hits, Hit{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
		})
		if len(hits) >= num {
			break
		}
	}

	return hits, nil
}
