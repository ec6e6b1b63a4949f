package httpadapter

import (
	"errors"
	"net/http"
	"strings"

	"github.com/corpusqa/corpusqa/internal/core/domain"
)

type errorResponse struct {
	Error    string           `json:"error"`
	Attempts []attemptSummary `json:"attempts,omitempty"`
}

type attemptSummary struct {
	Provider  string `json:"provider"`
	Tier      int    `json:"tier"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrUnknownCorpus):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrGenerationUnavailable),
		domain.IsKind(err, domain.ErrIndexUnavailable),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// askOutcome folds err into a bounded metric label.
func askOutcome(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrUnknownCorpus):
		return "rejected"
	case domain.IsKind(err, domain.ErrIndexUnavailable):
		return "index_unavailable"
	case domain.IsKind(err, domain.ErrGenerationUnavailable):
		return "generation_unavailable"
	case domain.IsKind(err, domain.ErrTemporary):
		return "unavailable"
	default:
		return "error"
	}
}

// writeError renders err for the caller. Bad-request errors carry their
// domain message; 5xx bodies are fixed strings so upstream replies never
// reach the client. An exhausted tier chain additionally reports the
// per-provider attempt history.
func writeError(w http.ResponseWriter, status int, err error) {
	body := errorResponse{Error: publicErrorMessage(err, status)}

	var exhausted *domain.TiersExhaustedError
	if errors.As(err, &exhausted) {
		body.Attempts = summarizeAttempts(exhausted.Attempts)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds(err))
	}
	writeJSON(w, status, body)
}

func publicErrorMessage(err error, status int) string {
	switch {
	case status == http.StatusBadRequest, status == http.StatusNotFound:
		return err.Error()
	case domain.IsKind(err, domain.ErrGenerationUnavailable):
		return "no generation provider is available"
	case domain.IsKind(err, domain.ErrIndexUnavailable):
		return "search index is unavailable"
	case status == http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	default:
		return "internal error"
	}
}

func retryAfterSeconds(err error) string {
	if domain.IsKind(err, domain.ErrGenerationUnavailable) {
		return "30"
	}
	return "10"
}

func summarizeAttempts(attempts []domain.GenerationAttempt) []attemptSummary {
	out := make([]attemptSummary, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, attemptSummary{
			Provider:  a.Provider,
			Tier:      a.Tier,
			Error:     compactAttemptError(a.Err),
			LatencyMS: a.Latency.Milliseconds(),
		})
	}
	return out
}

// compactAttemptError strips upstream body snippets from an attempt error:
// status-shaped messages are cut after the status line, everything else is
// clipped to its first line.
func compactAttemptError(msg string) string {
	const marker = " status: "
	if i := strings.Index(msg, marker); i >= 0 {
		rest := msg[i+len(marker):]
		if j := strings.Index(rest, ": "); j >= 0 {
			return msg[:i+len(marker)+j]
		}
	}
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if len(msg) > 160 {
		msg = msg[:160]
	}
	return msg
}
