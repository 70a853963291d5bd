package transfer

import (
	"context"
	"time"

	"bankcore/internal/models"
)

// Verifier checks one-time codes that authorize a transfer.
type Verifier interface {
	CheckChallenge(ctx context.Context, subjectID string, purpose models.Purpose, code string) (bool, error)
}

// Notifier is used to notify account holders about transfers.
type Notifier interface {
	Notify(ctx context.Context, destination string, purpose models.Purpose, payload models.Notification) error
}

// Service validates, prices and settles transfers.
type Service interface {
	ValidateTransfer(ctx context.Context, intent Intent) error
	PriceTransfer(ctx context.Context, intent Intent) (*Pricing, error)
	SettleTransfer(ctx context.Context, intent Intent, pricing *Pricing, challengeCode string) (*Result, error)

	// Held transfers
	ConfirmPending(ctx context.Context, reference string) (*Result, error)
	CancelPending(ctx context.Context, reference, reason string) (*Result, error)

	// Standing orders
	ScheduleRecurring(ctx context.Context, rt *models.RecurringTransfer, challengeCode string) error
	ListRecurring(ctx context.Context, ownerID string) ([]models.RecurringTransfer, error)
	CancelRecurring(ctx context.Context, ownerID, id string) error
	RunRecurring(ctx context.Context, now time.Time) (*RunReport, error)
}

// MetricsCollector defines the interface for collecting transfer metrics
type MetricsCollector interface {
	RecordTransfer(class models.TransferClass, tier models.TransferTier, status string)
	RecordSettleAttempt(outcome string)
	RecordFee(class models.TransferClass, fee models.Amount)
}
