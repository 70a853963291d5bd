package verification

import (
	"context"
	"time"

	"bankcore/internal/models"
)

// Service issues and checks one-time passcodes.
type Service interface {
	IssueChallenge(ctx context.Context, subjectID string, purpose models.Purpose, notifier Notifier) (*Issued, error)
	CheckChallenge(ctx context.Context, subjectID string, purpose models.Purpose, code string) (bool, error)
	CheckChallengeByToken(ctx context.Context, token string) (string, models.Purpose, error)
	Sweep(ctx context.Context) (int, error)
}

// Notifier delivers a code to the subject out of band.
type Notifier interface {
	Notify(ctx context.Context, destination string, purpose models.Purpose, payload models.Notification) error
}

// Store persists challenges and blocks. Mutate runs fn against the current
// state of (subject, purpose) and applies the returned Mutation atomically; if
// the state changed underneath, fn is run again on the fresh state. An error
// from fn aborts without writing.
type Store interface {
	Mutate(ctx context.Context, subjectID string, purpose models.Purpose, fn MutateFunc) error
	LookupToken(ctx context.Context, token string) (string, models.Purpose, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// MutateFunc decides the writes for one Mutate round.
type MutateFunc func(state State) (Mutation, error)

// MetricsCollector defines the interface for collecting verification metrics
type MetricsCollector interface {
	RecordChallengeIssued(purpose models.Purpose)
	RecordChallengeCheck(purpose models.Purpose, outcome string)
	RecordSubjectBlocked()
	RecordSwept(count int)
}
