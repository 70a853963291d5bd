package verification

import (
	"time"

	"bankcore/internal/models"
)

// Config holds configuration for the verification service
type Config struct {
	CodeLength    int
	TTL           time.Duration
	MaxAttempts   int
	BlockDuration time.Duration
	BcryptCost    int
}

// Issued is returned to the caller of IssueChallenge. The code itself only
// travels through the notifier.
type Issued struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// State is what Mutate loaded for one (subject, purpose). Either field may be nil.
type State struct {
	Challenge *models.Challenge
	Block     *models.Block
}

// Mutation lists the writes a MutateFunc wants applied. The zero value writes
// nothing.
type Mutation struct {
	Put      *models.Challenge
	PutTTL   time.Duration
	Delete   bool
	Block    *models.Block
	BlockTTL time.Duration
	Unblock  bool
}

func (m Mutation) empty() bool {
	return m.Put == nil && !m.Delete && m.Block == nil && !m.Unblock
}

// Check outcomes reported to metrics.
const (
	outcomeSuccess  = "success"
	outcomeInvalid  = "invalid"
	outcomeExpired  = "expired"
	outcomeNotFound = "not_found"
	outcomeBlocked  = "blocked"
	outcomeLocked   = "locked"
)
