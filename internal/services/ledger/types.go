package ledger

import (
	"context"
	"time"

	"bankcore/internal/models"
	"bankcore/internal/repositories"
)

// EntryTemplate carries the descriptive part of an entry. Amount, balance
// snapshot, sequence and status are filled in by the engine.
type EntryTemplate struct {
	Kind        models.EntryKind
	Description string
	Reference   string
	Metadata    models.JSON
}

// Change is one leg of a compound write. Delta is signed: positive credits,
// negative debits, and its sign must agree with Entry.Kind.
type Change struct {
	AccountID string
	Category  models.Category
	Delta     models.Amount
	Entry     EntryTemplate
}

// Result is the outcome of one applied leg.
type Result struct {
	Entry      models.LedgerEntry
	NewBalance models.Amount
}

// CreditLeg is the recipient side of a held transfer, applied on posting.
type CreditLeg struct {
	AccountID string
	Category  models.Category
	Amount    models.Amount
}

// HoldRequest reserves Amount+Fee on an account for a pending transfer.
type HoldRequest struct {
	AccountID    string
	Category     models.Category
	Reference    string
	Amount       models.Amount
	Fee          models.Amount
	Description  string
	Metadata     models.JSON
	Credit       *CreditLeg
	FeeAccountID string
}

// HoldResult is returned by hold operations.
type HoldResult struct {
	Hold    models.Hold
	Entries []models.LedgerEntry
	// Balance is the sender's category balance after the operation.
	Balance models.AccountBalance
}

// EntryFilter selects ledger entries.
type EntryFilter = repositories.EntryFilter

// Config holds configuration for the ledger engine
type Config struct {
	// ActivityLimit bounds the recent-activity view per account.
	ActivityLimit int
	// FeeIncomeKind is the kind used when crediting collected fees to a
	// revenue account.
	FeeIncomeKind models.EntryKind
}

// MetricsCollector defines the interface for collecting ledger metrics
type MetricsCollector interface {
	RecordOperationDuration(operation string, duration time.Duration)
	RecordOperationResult(operation, result string)
	RecordEntry(kind models.EntryKind, amount models.Amount)
	RecordError(operation, errType string)
}

// ActivityView is the bounded recent-activity projection.
type ActivityView interface {
	Append(ctx context.Context, entries ...models.LedgerEntry) error
	Recent(ctx context.Context, accountID string, n int) ([]models.LedgerEntry, error)
	Replace(ctx context.Context, accountID string, entries []models.LedgerEntry) error
}

// CategoryReport is the consistency verdict for one balance.
type CategoryReport struct {
	Category    models.Category `json:"category"`
	Balance     models.Amount   `json:"balance"`
	Held        models.Amount   `json:"held"`
	LastSeq     int64           `json:"last_seq"`
	LastBalance models.Amount   `json:"last_balance_after"`
	Replayed    models.Amount   `json:"replayed"`
	ActiveHolds models.Amount   `json:"active_holds"`
	Consistent  bool            `json:"consistent"`
	Discrepancy string          `json:"discrepancy,omitempty"`
}

// ConsistencyReport aggregates CategoryReports for an account.
type ConsistencyReport struct {
	AccountID   string           `json:"account_id"`
	Categories  []CategoryReport `json:"categories"`
	Consistent  bool             `json:"consistent"`
	Discrepancy string           `json:"discrepancy,omitempty"`
}
