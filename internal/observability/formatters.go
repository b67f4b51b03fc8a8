// Package observability provides formatted output utilities for verbose CLI mode
// and Prometheus metrics for the research pipeline.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/research-agent/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// meterWidth is the number of cells in the confidence meter
	meterWidth = 20
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, shorten(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintQueries outputs the search queries a question was decomposed into.
func (p *Printer) PrintQueries(queries []string) {
	if len(queries) == 0 {
		return
	}

	var sb strings.Builder
	for i, q := range queries {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, q))
	}

	p.printBox(fmt.Sprintf("SEARCH QUERIES (%d)", len(queries)), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSources outputs the first few sources with their domains.
func (p *Printer) PrintSources(sources []types.SourceView) {
	if len(sources) == 0 {
		p.printBox("SOURCES", "No sources found.")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total sources: %d\n\n", len(sources)))

	count := min(len(sources), maxItemsToShow)
	for i := 0; i < count; i++ {
		s := sources[i]
		sb.WriteString(fmt.Sprintf("%s %s\n", s.ID, s.Title))
		sb.WriteString(fmt.Sprintf("    %s\n", s.Domain))
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(sources) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more sources", len(sources)-maxItemsToShow))
	}

	p.printBox("SOURCES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAnswer outputs the answer body followed by its confidence meter.
// The answer is word-wrapped rather than truncated.
func (p *Printer) PrintAnswer(result *types.ResearchResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	for _, line := range strings.Split(result.Answer, "\n") {
		for _, wrapped := range wrap(line, boxWidth-4) {
			sb.WriteString(wrapped)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Confidence: %s\n", ConfidenceMeter(result.Confidence)))
	if result.IsSufficient {
		sb.WriteString("Sources:    ✓ sufficient")
	} else {
		sb.WriteString("Sources:    ⚠ insufficient")
	}

	p.printBox("ANSWER", sb.String())
}

// ConfidenceMeter renders a confidence in [0,1] as a bar with a percentage.
func ConfidenceMeter(confidence float64) string {
	confidence = max(0, min(1, confidence))
	filled := int(confidence*meterWidth + 0.5)
	return fmt.Sprintf("[%s%s] %3.0f%%",
		strings.Repeat("█", filled),
		strings.Repeat("░", meterWidth-filled),
		confidence*100)
}

// shorten cuts s to limit characters, ending with "..." when cut.
func shorten(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}

// wrap splits line into pieces of at most width characters on word boundaries.
// Words longer than width are shortened.
func wrap(line string, width int) []string {
	words := strings.Fields(line)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	var current []rune
	for _, word := range words {
		w := []rune(shorten(word, width))
		switch {
		case len(current) == 0:
			current = w
		case len(current)+1+len(w) <= width:
			current = append(append(current, ' '), w...)
		default:
			lines = append(lines, string(current))
			current = w
		}
	}
	return append(lines, string(current))
}
