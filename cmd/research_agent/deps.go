package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/research-agent/internal/config"
	"github.com/jonathan/research-agent/internal/llm"
	"github.com/jonathan/research-agent/internal/observability"
	"github.com/jonathan/research-agent/internal/pipeline"
	"github.com/jonathan/research-agent/internal/prompts"
	"github.com/jonathan/research-agent/internal/research"
	"github.com/jonathan/research-agent/internal/search"
)

// Collaborator constructors. Tests replace them with fakes.
var (
	newGenerator = buildGenerator
	newSearcher  = buildSearcher
)

// buildGenerator creates the LLM client selected by cfg.
func buildGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llm.Client, error) {
	llmCfg := llm.ConfigFor(llm.Provider(cfg.LLMProvider))
	if cfg.LLMModel != "" {
		llmCfg = llmCfg.WithAllModels(cfg.LLMModel)
	}
	llmCfg.Timeout = time.Duration(cfg.LLMTimeout)

	apiKey := cfg.APIKeyFor(cfg.LLMProvider)
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for LLM provider %q", cfg.LLMProvider)
	}

	client, err := llm.NewClient(ctx, llmCfg, apiKey, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return client, nil
}

// buildSearcher creates the search backend selected by cfg.
func buildSearcher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.Searcher, error) {
	backend, err := search.NewBackend(ctx, search.Options{
		Provider: search.Provider(cfg.SearchProvider),
		APIKey:   cfg.GoogleSearchAPIKey,
		CX:       cfg.GoogleSearchCX,
		Timeout:  time.Duration(cfg.SearchTimeout),
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create search backend: %w", err)
	}
	return backend, nil
}

// buildPipeline wires both collaborators into a Pipeline. The returned close func
// releases the LLM client.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*pipeline.Pipeline, func(), error) {
	if err := prompts.Check(); err != nil {
		return nil, nil, err
	}

	gen, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	searcher, err := newSearcher(ctx, cfg, logger)
	if err != nil {
		_ = gen.Close()
		return nil, nil, err
	}

	p := pipeline.New(gen, searcher,
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
		pipeline.WithMaxParallelSearches(cfg.MaxParallelSearches))

	return p, closerFor(gen, logger), nil
}

// buildQuickAnswerer creates only the LLM client. Quick answers never search, so no
// search backend is built.
func buildQuickAnswerer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*research.Synthesizer, func(), error) {
	if err := prompts.Check(); err != nil {
		return nil, nil, err
	}

	gen, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return research.NewSynthesizer(gen, logger), closerFor(gen, logger), nil
}

func closerFor(gen llm.Client, logger *slog.Logger) func() {
	return func() {
		if err := gen.Close(); err != nil {
			logger.Warn("failed to close LLM client", "error", err)
		}
	}
}
