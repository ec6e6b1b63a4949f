package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/corpusqa/corpusqa/internal/core/domain"
)

func TestAskMapsDomainErrorsToStatusCodes(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantInBody string
	}{
		{
			name:       "unknown corpus",
			err:        domain.WrapError(domain.ErrUnknownCorpus, "route query", errors.New(`corpus "wiki" is not configured`)),
			wantStatus: http.StatusBadRequest,
			wantInBody: "wiki",
		},
		{
			name:       "invalid input",
			err:        domain.WrapError(domain.ErrInvalidInput, "validate query", errors.New("limit 50 outside range 1..20")),
			wantStatus: http.StatusBadRequest,
			wantInBody: "limit",
		},
		{
			name:       "index unavailable",
			err:        domain.WrapError(domain.ErrIndexUnavailable, "retrieve", errors.New("dial tcp: connection refused")),
			wantStatus: http.StatusServiceUnavailable,
			wantInBody: "search index is unavailable",
		},
		{
			name:       "temporary dependency failure",
			err:        domain.WrapError(domain.ErrTemporary, "cache get", errors.New("redis: connection pool timeout")),
			wantStatus: http.StatusServiceUnavailable,
			wantInBody: "service temporarily unavailable",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newAskHandler(&queryServiceFake{err: tc.err})

			res := postAsk(t, handler, map[string]any{"query": "anything"})
			if res.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, res.Code, res.Body.String())
			}
			if !strings.Contains(res.Body.String(), tc.wantInBody) {
				t.Fatalf("expected %q in body, got %s", tc.wantInBody, res.Body.String())
			}
		})
	}
}

func TestAskTiersExhaustedCarriesAttemptHistory(t *testing.T) {
	err := &domain.TiersExhaustedError{Attempts: []domain.GenerationAttempt{
		{
			Provider: "ollama",
			Tier:     1,
			Err:      `ollama generate status: 503 Service Unavailable: {"error":"model is loading"}`,
			Latency:  1200 * time.Millisecond,
		},
		{
			Provider: "gemini",
			Tier:     2,
			Err:      "context deadline exceeded",
			Latency:  30 * time.Second,
		},
	}}
	handler := newAskHandler(&queryServiceFake{err: err})

	res := postAsk(t, handler, map[string]any{"query": "anything"})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header on exhausted tiers")
	}

	var resp errorResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Error != "no generation provider is available" {
		t.Fatalf("unexpected public message: %q", resp.Error)
	}
	if len(resp.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(resp.Attempts))
	}

	first := resp.Attempts[0]
	if first.Provider != "ollama" || first.Tier != 1 {
		t.Fatalf("unexpected first attempt: %+v", first)
	}
	if first.Error != "ollama generate status: 503 Service Unavailable" {
		t.Fatalf("expected upstream body stripped, got %q", first.Error)
	}
	if first.LatencyMS != 1200 {
		t.Fatalf("expected 1200ms latency, got %d", first.LatencyMS)
	}

	second := resp.Attempts[1]
	if second.Error != "context deadline exceeded" {
		t.Fatalf("expected timeout error kept verbatim, got %q", second.Error)
	}
}

func TestAskHidesUnexpectedErrorDetail(t *testing.T) {
	handler := newAskHandler(&queryServiceFake{err: errors.New("pq: relation answers_v2 does not exist")})

	res := postAsk(t, handler, map[string]any{"query": "anything"})
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "answers_v2") {
		t.Fatalf("internal detail leaked: %s", res.Body.String())
	}
	if !strings.Contains(res.Body.String(), "internal error") {
		t.Fatalf("expected generic message, got %s", res.Body.String())
	}
}

func TestCompactAttemptError(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "status with body stripped",
			in:   "gemini generate status: 429 Too Many Requests: {\"error\":{\"message\":\"quota exceeded\"}}",
			want: "gemini generate status: 429 Too Many Requests",
		},
		{
			name: "status without body unchanged",
			in:   "openai generate status: 500 Internal Server Error",
			want: "openai generate status: 500 Internal Server Error",
		},
		{
			name: "multiline clipped to first line",
			in:   "request failed\ntrace: goroutine 12",
			want: "request failed",
		},
		{
			name: "plain message unchanged",
			in:   "gemini returned no candidates",
			want: "gemini returned no candidates",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := compactAttemptError(tc.in); got != tc.want {
				t.Fatalf("compactAttemptError(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
