package transfer

import (
	"errors"
	"strings"

	domainerrors "bankcore/internal/errors"
	"bankcore/internal/validation"
)

// Service errors
var (
	ErrValidation        = domainerrors.ErrValidation
	ErrSettlementFailed  = domainerrors.ErrSettlementFailed
	ErrChallengeRequired = domainerrors.ErrChallengeRequired
	ErrInvalidState      = domainerrors.ErrInvalidState
	ErrRateUnavailable   = domainerrors.ErrRateUnavailable
)

// ValidationError carries every violated rule of an intent.
type ValidationError struct {
	Violations []validation.Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, message string) error {
	return &ValidationError{Violations: []validation.Violation{{Field: field, Message: message}}}
}

// Classify tells whether retrying the whole operation may succeed. Exhausted
// retries surface as ErrSettlementFailed, which is terminal.
func Classify(err error) Classification {
	if err != nil && domainerrors.IsRetryable(err) && !errors.Is(err, ErrSettlementFailed) {
		return Retryable
	}
	return Terminal
}
