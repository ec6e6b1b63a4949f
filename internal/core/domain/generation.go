package domain

import (
	"fmt"
	"strings"
	"time"
)

// GenerationAttempt records one provider tier try. The attempt list on a
// request is append-only and ordered by tier.
type GenerationAttempt struct {
	Provider string        `json:"provider"`
	Tier     int           `json:"tier"`
	Err      string        `json:"error,omitempty"`
	Latency  time.Duration `json:"latency"`
}

func (a GenerationAttempt) Failed() bool {
	return a.Err != ""
}

// TiersExhaustedError is returned when every configured generation tier
// failed. It carries the full ordered attempt history for diagnosis and
// unwraps to ErrGenerationUnavailable.
type TiersExhaustedError struct {
	Attempts []GenerationAttempt
}

func (e *TiersExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Provider, a.Err))
	}
	return fmt.Sprintf("all %d generation tiers failed: %s", len(e.Attempts), strings.Join(parts, "; "))
}

func (e *TiersExhaustedError) Unwrap() error {
	return ErrGenerationUnavailable
}
