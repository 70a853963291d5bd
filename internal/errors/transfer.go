package errors

var (
	ErrSettlementFailed  = New("SETTLEMENT_FAILED", "settlement failed")
	ErrChallengeRequired = New("CHALLENGE_REQUIRED", "verification code required")
	ErrRateUnavailable   = New("RATE_UNAVAILABLE", "exchange rate unavailable")
	ErrInvalidState      = New("INVALID_STATE", "invalid transfer state")
)
