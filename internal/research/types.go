// Package research provides query decomposition, source tracking, and cited answer synthesis.
package research

import (
	"context"
	"time"

	"github.com/jonathan/research-agent/internal/llm"
)

// Generator is the text-completion collaborator used for decomposition and synthesis.
// llm.Client satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
}

// DecomposedQuery is the result of breaking a question into search queries.
type DecomposedQuery struct {
	OriginalQuestion string   `json:"original_question"`
	Queries          []string `json:"queries"`    // Ordered by priority, at most MaxQueries
	IsComplex        bool     `json:"is_complex"` // Model judged the question multi-part
}

// Source is a deduplicated web result tracked by a Registry.
type Source struct {
	ID         string    `json:"id"` // Citation token such as "[1]"
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Snippet    string    `json:"snippet"`
	Domain     string    `json:"domain"`
	AccessedAt time.Time `json:"accessed_at"`
}

// Synthesis is the parsed outcome of one answer synthesis.
type Synthesis struct {
	Answer       string
	Confidence   float64
	IsSufficient bool
	// Err is the generation failure already rendered into Answer, if any.
	Err error
}

const (
	// MaxQueries caps the number of queries a decomposition may return.
	MaxQueries = 5
	// ModelSnippetLimit is the snippet length shown to the model.
	ModelSnippetLimit = 500
	// ViewSnippetLimit is the snippet length returned to clients.
	ViewSnippetLimit = 300
)

// truncateRunes shortens s to at most limit characters and appends "..." when it was cut.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
