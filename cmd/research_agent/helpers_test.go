package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/jonathan/research-agent/internal/config"
	"github.com/jonathan/research-agent/internal/llm"
	"github.com/jonathan/research-agent/internal/pipeline"
	"github.com/jonathan/research-agent/internal/search"
)

// fakeClient is an llm.Client that answers by tier.
type fakeClient struct {
	mu      sync.Mutex
	replies map[llm.ModelTier]string
	tiers   []llm.ModelTier
	closed  bool
}

func (c *fakeClient) GenerateContent(_ context.Context, _ string, tier llm.ModelTier) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tiers = append(c.tiers, tier)
	return c.replies[tier], nil
}

func (c *fakeClient) GetModel(tier llm.ModelTier) string {
	return "fake-" + string(tier)
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// fakeSearcher returns fixed hits per query.
type fakeSearcher struct {
	mu      sync.Mutex
	hits    map[string][]search.Hit
	queries []string
}

func (s *fakeSearcher) Search(_ context.Context, query string, _ int) ([]search.Hit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return s.hits[query], nil
}

// installFakes swaps the collaborator constructors for fakes and resets CLI state.
func installFakes(t *testing.T, client *fakeClient, searcher *fakeSearcher) {
	t.Helper()

	origGen, origSearch := newGenerator, newSearcher
	newGenerator = func(context.Context, *config.Config, *slog.Logger) (llm.Client, error) {
		return client, nil
	}
	newSearcher = func(context.Context, *config.Config, *slog.Logger) (pipeline.Searcher, error) {
		return searcher, nil
	}
	t.Cleanup(func() {
		newGenerator, newSearcher = origGen, origSearch
	})

	clearProviderEnv(t)
}

// clearProviderEnv keeps a developer .env from changing which providers are validated.
func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LLM_PROVIDER", "LLM_MODEL", "SEARCH_PROVIDER",
		"GOOGLE_API_KEY", "GOOGLE_SEARCH_API_KEY", "GOOGLE_CSE_ID",
		"GEMINI_API_KEY", "ANTHROPIC_API_KEY",
		"PORT", "RATE_LIMIT_PER_MINUTE",
	} {
		t.Setenv(key, "")
	}
}

// executeCommand runs the root command in-process and returns its stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	configPath, verbose = "", false
	askJSON, askQuick = false, false
	servePort = 0

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), err
}

func decompositionReply(queries ...string) string {
	var sb strings.Builder
	sb.WriteString("COMPLEXITY: simple\nQUERIES:\n")
	for _, q := range queries {
		sb.WriteString("- " + q + "\n")
	}
	return sb.String()
}

func goFixtures() (*fakeClient, *fakeSearcher) {
	client := &fakeClient{replies: map[llm.ModelTier]string{
		llm.TierLite:     decompositionReply("Go first release", "Go 1.0 release date"),
		llm.TierStandard: "ANSWER:\nGo was announced in 2009 [1] and 1.0 shipped in 2012 [2].\nCONFIDENCE: 0.9\nSUFFICIENT: yes",
	}}
	searcher := &fakeSearcher{hits: map[string][]search.Hit{
		"Go first release": {
			{Title: "The Go Blog", URL: "https://go.dev/blog/gos-birthday", Snippet: "Go was announced in November 2009."},
		},
		"Go 1.0 release date": {
			{Title: "Go 1 release notes", URL: "https://go.dev/doc/go1", Snippet: "Go 1 was released in March 2012."},
			{Title: "The Go Blog", URL: "https://go.dev/blog/gos-birthday", Snippet: "duplicate"},
		},
	}}
	return client, searcher
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
