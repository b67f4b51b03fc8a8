// Package prompts provides the research prompt templates.
// The templates live in research.json, embedded at compile time, and use {{.Key}} placeholders.
package prompts

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

//go:embed research.json
var researchJSON []byte

// Prompt keys in research.json.
const (
	Decompose   = "decompose"
	Synthesize  = "synthesize"
	QuickAnswer = "quick-answer"
)

// placeholders lists the data keys each prompt must reference.
var placeholders = map[string][]string{
	Decompose:   {"Question"},
	Synthesize:  {"Question", "Sources"},
	QuickAnswer: {"Question"},
}

// templates parses research.json once.
var templates = sync.OnceValues(func() (map[string]string, error) {
	var parsed map[string]string
	if err := json.Unmarshal(researchJSON, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse research prompts: %w", err)
	}
	return parsed, nil
})

// Get returns the raw template stored under key.
func Get(key string) (string, error) {
	all, err := templates()
	if err != nil {
		return "", err
	}

	template, exists := all[key]
	if !exists {
		return "", fmt.Errorf("prompt key %q not found in research.json", key)
	}
	return template, nil
}

// Render returns the prompt stored under key with its placeholders filled from data.
func Render(key string, data map[string]string) (string, error) {
	template, err := Get(key)
	if err != nil {
		return "", err
	}
	return Format(template, data), nil
}

// Format replaces {{.Key}} placeholders with values from data in a single pass.
// Substituted values are never expanded again, so a question or snippet that contains
// placeholder text is passed through literally. Unknown placeholders are left in place.
func Format(template string, data map[string]string) string {
	if len(data) == 0 {
		return template
	}

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, key := range keys {
		pairs = append(pairs, "{{."+key+"}}", data[key])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Check verifies that every research prompt exists and references the placeholders its
// caller fills. It runs at startup so a broken prompt file fails fast instead of
// degrading every run to a fallback answer.
func Check() error {
	for key, required := range placeholders {
		template, err := Get(key)
		if err != nil {
			return err
		}
		for _, name := range required {
			if !strings.Contains(template, "{{."+name+"}}") {
				return fmt.Errorf("prompt %q is missing placeholder {{.%s}}", key, name)
			}
		}
	}
	return nil
}
