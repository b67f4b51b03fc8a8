package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jonathan/research-agent/internal/pipeline"
	"github.com/jonathan/research-agent/internal/types"
)

// maxRequestBytes caps the size of an /ask request body.
const maxRequestBytes = 64 << 10

// decodeAskRequest reads and validates an AskRequest body.
// Whitespace-only questions pass and are handled by the pipeline's empty-input check.
func decodeAskRequest(w http.ResponseWriter, r *http.Request) (*types.AskRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var req types.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, err
		}
		return nil, &ErrValidation{Field: "body", Message: "Invalid request body: " + err.Error()}
	}

	if err := req.Validate(); err != nil {
		return nil, extractValidationErrors(err)
	}
	return &req, nil
}

// handleAsk runs one research question and returns the full result.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAskRequest(w, r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	result := s.researcher.Run(r.Context(), req.Question)
	s.jsonResponse(w, http.StatusOK, result)
}

// handleAskStream runs a research question and streams progress via SSE
func (s *Server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAskRequest(w, r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	var runID string
	result := s.researcher.RunWithProgress(r.Context(), req.Question, func(event pipeline.ProgressEvent) {
		runID = event.RunID
		if err := sse.WriteEvent(eventProgress, event); err != nil {
			s.logger.Warn("failed to write SSE event", "step", event.Step, "error", err)
		}
	})

	if err := sse.WriteEvent(eventResult, result); err != nil {
		s.logger.Warn("failed to write SSE result", "error", err)
		sse.WriteError(fmt.Sprintf("failed to send result: %v", err))
		return
	}
	sse.WriteComplete(runID, result.IsSufficient)
}

// handleQuickAnswer answers directly from the model without searching.
func (s *Server) handleQuickAnswer(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAskRequest(w, r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	answer := s.researcher.QuickAnswer(r.Context(), req.Question)
	s.jsonResponse(w, http.StatusOK, types.QuickAnswerResponse{
		Answer:   answer,
		Question: strings.TrimSpace(req.Question),
	})
}
