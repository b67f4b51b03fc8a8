package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes recorded by ObserveRun.
const (
	OutcomeAnswered     = "answered"
	OutcomeInsufficient = "insufficient"
	OutcomeEmpty        = "empty"
	OutcomeError        = "error"
)

// LLM stages recorded by LLMFailure.
const (
	StageDecompose  = "decompose"
	StageSynthesize = "synthesize"
	StageQuick      = "quick"
)

// Metrics holds the research pipeline collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	searchFailures prometheus.Counter
	sourcesPerRun  prometheus.Histogram
	llmFailures    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "research_runs_total",
				Help: "Total number of research runs by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "research_run_duration_seconds",
				Help:    "Duration of a full research run",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
		),
		searchFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "research_search_failures_total",
				Help: "Total number of failed search calls",
			},
		),
		sourcesPerRun: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "research_sources_per_run",
				Help:    "Number of distinct sources registered per run",
				Buckets: []float64{0, 1, 3, 5, 10, 15, 25},
			},
		),
		llmFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "research_llm_failures_total",
				Help: "Total number of failed LLM calls by stage",
			},
			[]string{"stage"},
		),
	}
}

// ObserveRun records the outcome, duration and source count of one run.
func (m *Metrics) ObserveRun(outcome string, duration time.Duration, sources int) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.sourcesPerRun.Observe(float64(sources))
}

// SearchFailure counts one failed search call.
func (m *Metrics) SearchFailure() {
	if m == nil {
		return
	}
	m.searchFailures.Inc()
}

// LLMFailure counts one failed LLM call at the given stage.
func (m *Metrics) LLMFailure(stage string) {
	if m == nil {
		return
	}
	m.llmFailures.WithLabelValues(stage).Inc()
}
