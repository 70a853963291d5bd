package ledger

import (
	"context"

	"bankcore/internal/models"
)

// Service defines the ledger engine interface
type Service interface {
	// Balance mutation
	ApplyLedgerChange(ctx context.Context, accountID string, category models.Category, delta models.Amount, tmpl EntryTemplate) (models.Amount, *models.LedgerEntry, error)
	ApplyLedgerChangeSet(ctx context.Context, changes []Change) ([]Result, error)

	// Holds
	PlaceHold(ctx context.Context, req HoldRequest) (*HoldResult, error)
	PostHold(ctx context.Context, reference string) (*HoldResult, error)
	ReleaseHold(ctx context.Context, reference, reason string) (*HoldResult, error)
	GetHold(ctx context.Context, reference string) (*models.Hold, error)
	ListHolds(ctx context.Context, accountID, status string) ([]models.Hold, error)

	// Accounts
	OpenAccount(ctx context.Context, ownerID, currency string) (*models.Account, error)
	SetAccountStatus(ctx context.Context, accountID, status string) (*models.Account, error)
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	ListAccounts(ctx context.Context, ownerID string) ([]models.Account, error)
	GetBalances(ctx context.Context, accountID string) ([]models.AccountBalance, error)
	GetBalance(ctx context.Context, accountID string, category models.Category) (*models.AccountBalance, error)

	// Entries
	ListEntries(ctx context.Context, filter EntryFilter) ([]models.LedgerEntry, int64, error)
	FindByReference(ctx context.Context, accountID, reference string) ([]models.LedgerEntry, error)
	RecentActivity(ctx context.Context, accountID string, n int) ([]models.LedgerEntry, error)
	RebuildRecentActivity(ctx context.Context, accountID string) error

	// Consistency
	VerifyConsistency(ctx context.Context, accountID string) (*ConsistencyReport, error)
}
