package errors

var (
	ErrSubjectBlocked         = New("SUBJECT_BLOCKED", "subject is temporarily blocked")
	ErrChallengeAlreadyActive = New("CHALLENGE_ACTIVE", "a challenge is already active")
	ErrChallengeNotFound      = New("CHALLENGE_NOT_FOUND", "no active challenge")
	ErrChallengeExpired       = New("CHALLENGE_EXPIRED", "challenge has expired")
	ErrChallengeInvalid       = New("CHALLENGE_INVALID", "invalid code")
	ErrTooManyAttempts        = New("TOO_MANY_ATTEMPTS", "too many failed attempts")
	ErrNotifierFailed         = New("NOTIFIER_FAILED", "notification delivery failed")
)
