package models

import "time"

// Purpose names the operation class a one-time code authorizes.
type Purpose string

const (
	PurposeLogin               Purpose = "login"
	PurposeTransfer            Purpose = "transfer"
	PurposeProfileUpdate       Purpose = "profile-update"
	PurposeCardApplication     Purpose = "card-application"
	PurposePasswordReset       Purpose = "password-reset"
	PurposeTransactionApproval Purpose = "transaction-approval"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeLogin, PurposeTransfer, PurposeProfileUpdate,
		PurposeCardApplication, PurposePasswordReset, PurposeTransactionApproval:
		return true
	}
	return false
}

// Challenge is a live one-time-passcode challenge. Only the bcrypt hash of the
// code is stored.
type Challenge struct {
	SubjectID   string    `json:"subject_id"`
	Purpose     Purpose   `json:"purpose"`
	CodeHash    []byte    `json:"code_hash"`
	Token       string    `json:"token"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	Verified    bool      `json:"verified"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Usable reports whether the challenge can still be answered.
func (c *Challenge) Usable(now time.Time) bool {
	return !c.Verified && c.Attempts < c.MaxAttempts && !c.Expired(now)
}

// RemainingAttempts is the number of wrong codes still tolerated.
func (c *Challenge) RemainingAttempts() int {
	if r := c.MaxAttempts - c.Attempts; r > 0 {
		return r
	}
	return 0
}

// Block records a subject that exhausted its attempts.
type Block struct {
	SubjectID string    `json:"subject_id"`
	UnblockAt time.Time `json:"unblock_at"`
}

func (b *Block) Active(now time.Time) bool {
	return now.Before(b.UnblockAt)
}
