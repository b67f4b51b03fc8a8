package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonathan/research-agent/internal/llm"
	"github.com/jonathan/research-agent/internal/prompts"
)

// NoSourcesAnswer is returned when a run found nothing to cite.
const NoSourcesAnswer = "I couldn't find any relevant information. Please try rephrasing your question."

// Synthesizer turns registered sources into a cited answer.
type Synthesizer struct {
	gen    Generator
	logger *slog.Logger
}

// NewSynthesizer creates a Synthesizer backed by the given generator.
func NewSynthesizer(gen Generator, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{gen: gen, logger: logger}
}

// Synthesize writes an answer citing the registry's sources.
// Failures are reported in the answer text with zero confidence, never returned.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, registry *Registry) Synthesis {
	if registry == nil || registry.Len() == 0 {
		return Synthesis{Answer: NoSourcesAnswer}
	}

	prompt, err := prompts.Render(prompts.Synthesize, map[string]string{
		"Question": question,
		"Sources":  registry.RenderForModel(),
	})
	if err != nil {
		return s.failed(err)
	}

	reply, err := s.gen.GenerateContent(ctx, prompt, llm.TierStandard)
	if err != nil {
		return s.failed(err)
	}

	parsed := parseSynthesisReply(reply)
	answer := parsed.Answer
	if citations := registry.RenderCitations(); citations != "" {
		answer += "\n" + citations
	}

	s.logger.Debug("answer synthesized",
		"sources", registry.Len(),
		"confidence", parsed.Confidence,
		"sufficient", parsed.IsSufficient)

	return Synthesis{
		Answer:       answer,
		Confidence:   parsed.Confidence,
		IsSufficient: parsed.IsSufficient,
	}
}

// QuickAnswer asks the model directly, without searching or citations.
func (s *Synthesizer) QuickAnswer(ctx context.Context, question string) string {
	question = strings.TrimSpace(question)
	if question == "" {
		return "Please provide a valid question."
	}

	prompt, err := prompts.Render(prompts.QuickAnswer, map[string]string{"Question": question})
	if err != nil {
		return fmt.Sprintf("Unable to generate answer: %v", err)
	}

	reply, err := s.gen.GenerateContent(ctx, prompt, llm.TierLite)
	if err != nil {
		s.logger.Warn("quick answer failed", "error", err)
		return fmt.Sprintf("Unable to generate answer: %v", err)
	}
	return strings.TrimSpace(reply)
}

func (s *Synthesizer) failed(err error) Synthesis {
	s.logger.Warn("synthesis failed", "error", err)
	return Synthesis{
		Answer: fmt.Sprintf("Error synthesizing answer: %v", err),
		Err:    err,
	}
}
