package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCorpus         = errors.New("unknown corpus")
	ErrInvalidInput          = errors.New("invalid input")
	ErrIndexUnavailable      = errors.New("index unavailable")
	ErrGenerationUnavailable = errors.New("generation unavailable")
	ErrNotFound              = errors.New("not found")
	ErrTemporary             = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
