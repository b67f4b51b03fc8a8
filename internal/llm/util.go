// Package llm - util.go provides shared utilities for LLM response processing.
package llm

import "strings"

const codeFence = "```"

// StripCodeFence removes a markdown code fence opened at the start of a reply.
// Models sometimes fence structured replies (```text ... ```) even when told not to,
// and sometimes close the fence before the reply ends. The first bare ``` line closes
// the opening fence and is dropped; text after it is kept.
// Replies that do not start with a fence are returned trimmed but otherwise unchanged.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, codeFence) {
		return text
	}

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))

	// Skip a language identifier on the opening line
	opening := strings.TrimSpace(strings.TrimPrefix(lines[0], codeFence))
	if len(opening) >= 20 || strings.Contains(opening, " ") {
		kept = append(kept, opening)
	}

	closed := false
	for _, line := range lines[1:] {
		if !closed && strings.TrimSpace(line) == codeFence {
			closed = true
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
