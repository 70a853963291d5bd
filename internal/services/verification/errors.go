package verification

import (
	"fmt"
	"time"

	domainerrors "bankcore/internal/errors"
)

// Service errors
var (
	ErrSubjectBlocked         = domainerrors.ErrSubjectBlocked
	ErrChallengeAlreadyActive = domainerrors.ErrChallengeAlreadyActive
	ErrChallengeNotFound      = domainerrors.ErrChallengeNotFound
	ErrChallengeExpired       = domainerrors.ErrChallengeExpired
	ErrChallengeInvalid       = domainerrors.ErrChallengeInvalid
	ErrTooManyAttempts        = domainerrors.ErrTooManyAttempts
	ErrNotifierFailed         = domainerrors.ErrNotifierFailed
)

// InvalidCodeError reports a wrong code and how many tries are left.
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid code, %d attempts remaining", e.Remaining)
}

func (e *InvalidCodeError) Unwrap() error { return ErrChallengeInvalid }

// BlockedError reports a blocked subject and when the block lapses.
type BlockedError struct {
	Remaining time.Duration
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("subject is blocked for another %s", e.Remaining.Round(time.Second))
}

func (e *BlockedError) Unwrap() error { return ErrSubjectBlocked }
