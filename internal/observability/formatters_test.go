package observability

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jonathan/research-agent/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestPrintQueries(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintQueries([]string{"Go generics", "Rust traits"})
	output := buf.String()

	assert.Contains(t, output, "SEARCH QUERIES (2)")
	assert.Contains(t, output, "1. Go generics")
	assert.Contains(t, output, "2. Rust traits")
}

func TestPrintQueries_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintQueries(nil)

	assert.Empty(t, buf.String())
}

func TestPrintSources(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	sources := []types.SourceView{
		{ID: "[1]", Title: "The Go Programming Language", Domain: "go.dev"},
		{ID: "[2]", Title: "Rust Book", Domain: "doc.rust-lang.org"},
	}

	p.PrintSources(sources)
	output := buf.String()

	assert.Contains(t, output, "SOURCES")
	assert.Contains(t, output, "Total sources: 2")
	assert.Contains(t, output, "[1] The Go Programming Language")
	assert.Contains(t, output, "go.dev")
	assert.NotContains(t, output, "more sources")
}

func TestPrintSources_TruncatesList(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	sources := make([]types.SourceView, 8)
	for i := range sources {
		sources[i] = types.SourceView{ID: fmt.Sprintf("[%d]", i+1), Title: "T", Domain: "d.com"}
	}

	p.PrintSources(sources)
	output := buf.String()

	assert.Contains(t, output, "[5] T")
	assert.NotContains(t, output, "[6] T")
	assert.Contains(t, output, "... and 3 more sources")
}

func TestPrintSources_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSources(nil)

	assert.Contains(t, buf.String(), "No sources found.")
}

func TestPrintAnswer(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	longSentence := strings.Repeat("word ", 30)
	p.PrintAnswer(&types.ResearchResult{
		Answer:       "Go was released in 2009 [1].\n" + longSentence,
		Confidence:   0.75,
		IsSufficient: true,
	})
	output := buf.String()

	assert.Contains(t, output, "ANSWER")
	assert.Contains(t, output, "Go was released in 2009 [1].")
	assert.Contains(t, output, "75%")
	assert.Contains(t, output, "✓ sufficient")
	// Wrapped, not truncated.
	assert.Equal(t, 30, strings.Count(output, "word"))

	for _, line := range strings.Split(strings.TrimSuffix(output, "\n"), "\n") {
		assert.Equal(t, boxWidth, utf8.RuneCountInString(line), "line %q", line)
	}
}

func TestPrintAnswer_Insufficient(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintAnswer(&types.ResearchResult{Answer: "Not enough information.", Confidence: 0.2})

	assert.Contains(t, buf.String(), "⚠ insufficient")
}

func TestPrintAnswer_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintAnswer(nil)

	assert.Empty(t, buf.String())
}

func TestConfidenceMeter(t *testing.T) {
	tests := []struct {
		confidence float64
		expected   string
	}{
		{0, "[░░░░░░░░░░░░░░░░░░░░]   0%"},
		{0.5, "[██████████░░░░░░░░░░]  50%"},
		{1, "[████████████████████] 100%"},
		{1.7, "[████████████████████] 100%"},
		{-0.3, "[░░░░░░░░░░░░░░░░░░░░]   0%"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.1f", tt.confidence), func(t *testing.T) {
			assert.Equal(t, tt.expected, ConfidenceMeter(tt.confidence))
		})
	}
}

func TestWrap(t *testing.T) {
	assert.Equal(t, []string{""}, wrap("", 10))
	assert.Equal(t, []string{"one two", "three"}, wrap("one two three", 8))
	assert.Equal(t, []string{"abcdefg..."}, wrap("abcdefghijklmnop", 10))
}
