// Package pipeline provides the high-level orchestration for answering a research question.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/research-agent/internal/llm"
	"github.com/jonathan/research-agent/internal/observability"
	"github.com/jonathan/research-agent/internal/research"
	"github.com/jonathan/research-agent/internal/search"
	"github.com/jonathan/research-agent/internal/types"
)

// Canned answers for inputs that never reach the search stage.
const (
	EmptyQuestionAnswer = "Please provide a valid research question."
	UnprocessableAnswer = "Unable to process your question. Please try rephrasing it."
)

// DefaultMaxParallelSearches bounds the per-run search fan-out.
const DefaultMaxParallelSearches = 5

// Progress steps emitted by RunWithProgress.
const (
	StepDecomposed  = "decomposed"
	StepSearched    = "searched"
	StepSynthesized = "synthesized"
	StepComplete    = "complete"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step     string `json:"step"`
	Category string `json:"category"`
	Message  string `json:"message"`
	RunID    string `json:"run_id,omitempty"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Searcher is the web search collaborator. search.Backend satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]search.Hit, error)
}

// Pipeline runs decompose, search and synthesize for one question at a time.
// It holds no per-run state and is safe for concurrent use.
type Pipeline struct {
	searcher    Searcher
	decomposer  *research.Decomposer
	synthesizer *research.Synthesizer
	quick       *research.Synthesizer
	logger      *slog.Logger
	metrics     *observability.Metrics
	maxParallel int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics records run outcomes and collaborator failures on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithMaxParallelSearches bounds how many queries are searched at once.
func WithMaxParallelSearches(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxParallel = n
		}
	}
}

// New creates a Pipeline from its two collaborators.
func New(gen research.Generator, searcher Searcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		searcher:    searcher,
		logger:      slog.Default(),
		maxParallel: DefaultMaxParallelSearches,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.decomposer = research.NewDecomposer(
		&stageGenerator{gen: gen, stage: observability.StageDecompose, metrics: p.metrics}, p.logger)
	p.synthesizer = research.NewSynthesizer(
		&stageGenerator{gen: gen, stage: observability.StageSynthesize, metrics: p.metrics}, p.logger)
	p.quick = research.NewSynthesizer(
		&stageGenerator{gen: gen, stage: observability.StageQuick, metrics: p.metrics}, p.logger)
	return p
}

// Run answers question with cited sources. It never returns an error: every failure is
// reported inside the result.
func (p *Pipeline) Run(ctx context.Context, question string) types.ResearchResult {
	return p.RunWithProgress(ctx, question, nil)
}

// RunWithProgress is Run with a callback invoked after each stage.
func (p *Pipeline) RunWithProgress(ctx context.Context, question string, onProgress ProgressCallback) types.ResearchResult {
	start := time.Now()
	runID := uuid.New().String()
	emit := func(step, category, message string, content any) {
		emitProgress(onProgress, ProgressEvent{
			Step:     step,
			Category: category,
			Message:  message,
			RunID:    runID,
			Content:  content,
		})
	}
	logger := p.logger.With("run_id", runID)

	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		p.metrics.ObserveRun(observability.OutcomeEmpty, time.Since(start), 0)
		emit(StepComplete, "complete", "No question to research", nil)
		return cannedResult(EmptyQuestionAnswer, "")
	}

	// Step 1: Decompose into search queries
	decomposed := p.decomposer.Decompose(ctx, trimmed)
	if len(decomposed.Queries) == 0 {
		p.metrics.ObserveRun(observability.OutcomeEmpty, time.Since(start), 0)
		emit(StepComplete, "complete", "Question could not be processed", nil)
		return cannedResult(UnprocessableAnswer, trimmed)
	}
	logger.Info("question decomposed",
		"queries", len(decomposed.Queries),
		"complex", decomposed.IsComplex)
	emit(StepDecomposed, "planning",
		fmt.Sprintf("Planned %d search queries", len(decomposed.Queries)), decomposed.Queries)

	// Step 2: Search every query and register the hits
	perQuery := ResultsPerQuery(len(decomposed.Queries))
	hits := p.searchAll(ctx, logger, decomposed.Queries, perQuery)

	registry := research.NewRegistry()
	registry.AddMany(hits)
	logger.Info("search complete",
		"hits", len(hits),
		"sources", registry.Len(),
		"results_per_query", perQuery)
	emit(StepSearched, "research",
		fmt.Sprintf("Found %d unique sources", registry.Len()), registry.Views())

	// Step 3: Synthesize a cited answer
	synthesis := p.synthesizer.Synthesize(ctx, trimmed, registry)
	emit(StepSynthesized, "synthesis", "Synthesized answer", map[string]any{
		"confidence":    synthesis.Confidence,
		"is_sufficient": synthesis.IsSufficient,
	})

	result := types.ResearchResult{
		Answer:           synthesis.Answer,
		Sources:          registry.Views(),
		IsSufficient:     synthesis.IsSufficient,
		Confidence:       synthesis.Confidence,
		QueriesUsed:      decomposed.Queries,
		OriginalQuestion: trimmed,
	}

	p.metrics.ObserveRun(runOutcome(synthesis), time.Since(start), registry.Len())
	logger.Info("research run finished",
		"confidence", result.Confidence,
		"sufficient", result.IsSufficient,
		"duration", time.Since(start))
	emit(StepComplete, "complete", "Research complete", nil)

	return result
}

// QuickAnswer answers directly from the model without searching.
func (p *Pipeline) QuickAnswer(ctx context.Context, question string) string {
	return p.quick.QuickAnswer(ctx, question)
}

// ResultsPerQuery returns the per-query search budget: 5 for up to two queries, otherwise 3.
func ResultsPerQuery(queryCount int) int {
	if queryCount <= 2 {
		return 5
	}
	return 3
}

// searchAll searches each query concurrently and concatenates the hits in query order.
// A failed search is logged and contributes no hits.
func (p *Pipeline) searchAll(ctx context.Context, logger *slog.Logger, queries []string, perQuery int) []search.Hit {
	results := make([][]search.Hit, len(queries))

	var g errgroup.Group
	g.SetLimit(p.maxParallel)
	for i, query := range queries {
		g.Go(func() error {
			hits, err := p.searcher.Search(ctx, query, perQuery)
			if err != nil {
				p.metrics.SearchFailure()
				logger.Warn("search failed, continuing without its results",
					"query", query,
					"error", err)
				return nil
			}
			results[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	var all []search.Hit
	for _, hits := range results {
		all = append(all, hits...)
	}
	return all
}

// emitProgress calls the progress callback if configured
func emitProgress(onProgress ProgressCallback, event ProgressEvent) {
	if onProgress != nil {
		onProgress(event)
	}
}

func cannedResult(answer, question string) types.ResearchResult {
	return types.ResearchResult{
		Answer:           answer,
		Sources:          []types.SourceView{},
		IsSufficient:     false,
		Confidence:       0,
		QueriesUsed:      []string{},
		OriginalQuestion: question,
	}
}

func runOutcome(s research.Synthesis) string {
	switch {
	case s.Err != nil:
		return observability.OutcomeError
	case s.Answer == research.NoSourcesAnswer:
		return observability.OutcomeEmpty
	case !s.IsSufficient:
		return observability.OutcomeInsufficient
	default:
		return observability.OutcomeAnswered
	}
}

// stageGenerator counts failed calls for one pipeline stage.
type stageGenerator struct {
	gen     research.Generator
	stage   string
	metrics *observability.Metrics
}

func (s *stageGenerator) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	text, err := s.gen.GenerateContent(ctx, prompt, tier)
	if err != nil {
		s.metrics.LLMFailure(s.stage)
	}
	return text, err
}
