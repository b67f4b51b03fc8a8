package research

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jonathan/research-agent/internal/llm"
	"github.com/jonathan/research-agent/internal/prompts"
)

const (
	markerComplexity = "COMPLEXITY:"
	bulletPrefix     = "- "
)

// Decomposer breaks a question into prioritized search queries.
type Decomposer struct {
	gen    Generator
	logger *slog.Logger
}

// NewDecomposer creates a Decomposer backed by the given generator.
func NewDecomposer(gen Generator, logger *slog.Logger) *Decomposer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decomposer{gen: gen, logger: logger}
}

// Decompose asks the model for up to MaxQueries search queries.
// It never fails: a blank question yields no queries, and a model error or an
// unusable reply yields the trimmed question as the only query.
func (d *Decomposer) Decompose(ctx context.Context, question string) DecomposedQuery {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return DecomposedQuery{OriginalQuestion: question, Queries: []string{}}
	}

	fallback := DecomposedQuery{
		OriginalQuestion: question,
		Queries:          []string{trimmed},
	}

	prompt, err := prompts.Render(prompts.Decompose, map[string]string{"Question": trimmed})
	if err != nil {
		d.logger.Error("decompose prompt unavailable", "error", err)
		return fallback
	}

	reply, err := d.gen.GenerateContent(ctx, prompt, llm.TierLite)
	if err != nil {
		d.logger.Warn("decomposition failed, using question as the only query", "error", err)
		return fallback
	}

	queries, isComplex := parseDecomposition(reply)
	if len(queries) == 0 {
		d.logger.Debug("decomposition reply had no queries", "reply_len", len(reply))
		return fallback
	}

	d.logger.Debug("question decomposed", "queries", len(queries), "complex", isComplex)
	return DecomposedQuery{
		OriginalQuestion: question,
		Queries:          queries,
		IsComplex:        isComplex,
	}
}

// parseDecomposition reads the COMPLEXITY line and "- " bullets from a reply.
// Other lines are ignored. At most MaxQueries bullets are kept, in order.
func parseDecomposition(reply string) ([]string, bool) {
	reply = llm.StripCodeFence(reply)

	var queries []string
	isComplex := false
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, markerComplexity):
			value := strings.ToLower(strings.TrimPrefix(line, markerComplexity))
			isComplex = strings.Contains(value, "complex")
		case strings.HasPrefix(line, bulletPrefix):
			if query := strings.TrimSpace(strings.TrimPrefix(line, bulletPrefix)); query != "" {
				queries = append(queries, query)
			}
		}
	}

	if len(queries) > MaxQueries {
		queries = queries[:MaxQueries]
	}
	return queries, isComplex
}
