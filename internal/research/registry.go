package research

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/research-agent/internal/search"
	"github.com/jonathan/research-agent/internal/types"
)

const (
	untitledSource = "Untitled"
	unknownDomain  = "unknown"
	// noSourcesText is what the model sees when nothing was found.
	noSourcesText = "No sources available."
)

// Registry deduplicates search hits into sources with stable sequential ids.
// A Registry belongs to a single run. Sources are never removed.
type Registry struct {
	mu      sync.Mutex
	sources []Source
	byKey   map[string]int // normalized URL hash -> index into sources
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey: make(map[string]int),
		now:   time.Now,
	}
}

// AddFromSearchHit registers a hit and returns its Source.
// A URL already seen (ignoring case, surrounding whitespace and one trailing slash)
// returns the first Source registered for it unchanged.
func (r *Registry) AddFromSearchHit(hit search.Hit) Source {
	key := urlKey(hit.URL)

	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.byKey[key]; ok {
		return r.sources[idx]
	}

	title := strings.TrimSpace(hit.Title)
	if title == "" {
		title = untitledSource
	}
	rawURL := strings.TrimSpace(hit.URL)

	source := Source{
		ID:         fmt.Sprintf("[%d]", len(r.sources)+1),
		URL:        rawURL,
		Title:      title,
		Snippet:    strings.TrimSpace(hit.Snippet),
		Domain:     domainOf(rawURL),
		AccessedAt: r.now(),
	}
	r.byKey[key] = len(r.sources)
	r.sources = append(r.sources, source)
	return source
}

// AddMany registers hits in order, skipping hits with a blank URL.
// The result has one entry per registered hit, with repeats resolved to their first Source.
func (r *Registry) AddMany(hits []search.Hit) []Source {
	added := make([]Source, 0, len(hits))
	for _, hit := range hits {
		if strings.TrimSpace(hit.URL) == "" {
			continue
		}
		added = append(added, r.AddFromSearchHit(hit))
	}
	return added
}

// AllSources returns sources in first-seen order.
func (r *Registry) AllSources() []Source {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Len returns the number of distinct sources.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sources)
}

// Lookup finds a source by its citation id, e.g. "[2]".
func (r *Registry) Lookup(id string) (Source, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// RenderForModel formats sources as numbered context blocks for the synthesis prompt.
func (r *Registry) RenderForModel() string {
	sources := r.AllSources()
	if len(sources) == 0 {
		return noSourcesText
	}

	var sb strings.Builder
	sb.WriteString("Available Sources:\n")
	for _, s := range sources {
		sb.WriteString(fmt.Sprintf("\n%s %s\n", s.ID, s.Title))
		sb.WriteString(fmt.Sprintf("   URL: %s\n", s.URL))
		sb.WriteString(fmt.Sprintf("   Content: %s\n", truncateRunes(s.Snippet, ModelSnippetLimit)))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// RenderCitations formats a markdown footer listing every source.
// Returns "" when the registry is empty.
func (r *Registry) RenderCitations() string {
	sources := r.AllSources()
	if len(sources) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n---\n**Sources:**")
	for _, s := range sources {
		sb.WriteString(fmt.Sprintf("\n%s [%s](%s) - %s", s.ID, s.Title, s.URL, s.Domain))
	}
	return sb.String()
}

// Views projects sources into client-facing views with shortened snippets.
func (r *Registry) Views() []types.SourceView {
	sources := r.AllSources()
	views := make([]types.SourceView, 0, len(sources))
	for _, s := range sources {
		views = append(views, types.SourceView{
			ID:      s.ID,
			URL:     s.URL,
			Title:   s.Title,
			Snippet: truncateRunes(s.Snippet, ViewSnippetLimit),
			Domain:  s.Domain,
		})
	}
	return views
}

// normalizeURL lowercases, trims, and strips one trailing slash.
func normalizeURL(rawURL string) string {
	normalized := strings.ToLower(strings.TrimSpace(rawURL))
	return strings.TrimSuffix(normalized, "/")
}

// urlKey is the dedup key for a URL.
func urlKey(rawURL string) string {
	sum := sha256.Sum256([]byte(normalizeURL(rawURL)))
	return hex.EncodeToString(sum[:])
}

// domainOf returns the URL host without a leading "www.", or "unknown".
func domainOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return unknownDomain
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}
