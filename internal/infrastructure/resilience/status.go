package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/corpusqa/corpusqa/internal/core/domain"
)

// StatusError reports a non-2xx reply from an HTTP upstream.
type StatusError struct {
	Upstream   string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "upstream status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s %s status: %s", e.Upstream, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Upstream, e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// NewStatusError drains up to 2 KiB of the response body into a StatusError.
func NewStatusError(upstream, operation string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &StatusError{
		Upstream:   upstream,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}

// ClassifyHTTP is the shared verdict for HTTP upstreams. Transport errors and
// 408/429/5xx replies are retryable; context cancellation is neither retried
// nor counted against the breaker.
func ClassifyHTTP(err error) Verdict {
	if err == nil {
		return Verdict{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Verdict{Retry: false, Trip: false}
	}
	if IsCircuitOpen(err) {
		return Verdict{Retry: true, Trip: true}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if retryableStatus(statusErr.StatusCode) {
			return Verdict{Retry: true, Trip: true}
		}
		return Verdict{Retry: false, Trip: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Verdict{Retry: true, Trip: true}
	}

	return Verdict{Retry: false, Trip: true}
}

// Transient reports whether the error looks like a condition that could clear
// on its own. Adapters use it to tag exhausted retries for callers.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	return ClassifyHTTP(err).Retry || IsCircuitOpen(err)
}

// WrapTemporary tags transient failures with domain.ErrTemporary so the
// outer layers can answer with a retryable status.
func WrapTemporary(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if Transient(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func retryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
