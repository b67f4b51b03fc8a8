package research

import (
	"math"
	"strconv"
	"strings"

	"github.com/jonathan/research-agent/internal/llm"
)

const (
	markerAnswer     = "ANSWER:"
	markerConfidence = "CONFIDENCE:"
	markerSufficient = "SUFFICIENT:"

	// defaultConfidence applies when the CONFIDENCE line is missing or unreadable.
	defaultConfidence = 0.7
	noAnswerText      = "The model returned a reply without any answer text."
)

// replyState is the position of the synthesis reply scanner.
type replyState int

const (
	outsideAnswer replyState = iota
	insideAnswer
)

// parsedReply holds the structured fields recovered from a synthesis reply.
type parsedReply struct {
	Answer       string
	Confidence   float64
	IsSufficient bool
}

// parseSynthesisReply scans a reply of the form
//
//	ANSWER:
//	...body...
//	CONFIDENCE: 0.8
//	SUFFICIENT: yes
//
// Markers are recognized at the start of a trimmed line. Text after ANSWER: on the
// same line is dropped. Body lines are kept verbatim. SUFFICIENT defaults to true.
func parseSynthesisReply(reply string) parsedReply {
	reply = llm.StripCodeFence(reply)

	result := parsedReply{
		Confidence:   defaultConfidence,
		IsSufficient: true,
	}

	state := outsideAnswer
	var body []string
	for _, line := range strings.Split(reply, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, markerAnswer):
			state = insideAnswer
		case strings.HasPrefix(trimmed, markerConfidence):
			state = outsideAnswer
			result.Confidence = parseConfidence(strings.TrimPrefix(trimmed, markerConfidence))
		case strings.HasPrefix(trimmed, markerSufficient):
			result.IsSufficient = parseSufficient(strings.TrimPrefix(trimmed, markerSufficient))
		default:
			if state == insideAnswer {
				body = append(body, line)
			}
		}
	}

	result.Answer = strings.TrimSpace(strings.Join(body, "\n"))
	if result.Answer == "" {
		result.Answer = fallbackAnswer(reply)
	}
	return result
}

// parseConfidence reads the whole value as a float, clamped to [0, 1].
// Anything other than a bare number yields defaultConfidence.
func parseConfidence(value string) float64 {
	confidence, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(confidence) {
		return defaultConfidence
	}
	return math.Max(0, math.Min(1, confidence))
}

// parseSufficient accepts yes, true or 1 in any case.
func parseSufficient(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "true", "1":
		return true
	default:
		return false
	}
}

// fallbackAnswer recovers answer text from a reply whose ANSWER section was empty or missing.
// The reply is cut at the earliest marker. When nothing precedes it, the text between
// ANSWER: and the next marker is used instead.
func fallbackAnswer(reply string) string {
	text := strings.TrimSpace(reply)

	if cut := strings.TrimSpace(text[:earliestMarker(text)]); cut != "" {
		return cut
	}

	if idx := strings.Index(text, markerAnswer); idx >= 0 {
		rest := text[idx+len(markerAnswer):]
		if inline := strings.TrimSpace(rest[:earliestMarker(rest)]); inline != "" {
			return inline
		}
	}

	return noAnswerText
}

// earliestMarker returns the index of the first marker in text, or len(text).
func earliestMarker(text string) int {
	earliest := len(text)
	for _, marker := range []string{markerAnswer, markerConfidence, markerSufficient} {
		if idx := strings.Index(text, marker); idx >= 0 && idx < earliest {
			earliest = idx
		}
	}
	return earliest
}
