// Package types provides type definitions for structured data exchanged by the research agent.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"github.com/go-playground/validator/v10"
)

// AskRequest represents the request body for the /ask endpoints.
type AskRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

// Validate validates the AskRequest using the validator.
func (r *AskRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// SourceView is the client-facing projection of a tracked source.
type SourceView struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Domain  string `json:"domain"`
}

// ResearchResult is the final output of one research run.
type ResearchResult struct {
	Answer           string       `json:"answer"`
	Sources          []SourceView `json:"sources"`
	IsSufficient     bool         `json:"is_sufficient"`
	Confidence       float64      `json:"confidence"`
	QueriesUsed      []string     `json:"queries_used"`
	OriginalQuestion string       `json:"original_question"`
}

// QuickAnswerResponse is returned by the quick-answer endpoint.
type QuickAnswerResponse struct {
	Answer   string `json:"answer"`
	Question string `json:"question"`
}
