package repositories

import (
	"context"
	"time"

	domainerrors "bankcore/internal/errors"
	"bankcore/internal/models"
)

var (
	ErrAccountNotFound    = domainerrors.ErrAccountNotFound
	ErrHoldNotFound       = domainerrors.ErrHoldNotFound
	ErrDuplicateReference = domainerrors.ErrDuplicateReference
	ErrTransactionAborted = domainerrors.ErrTransactionAborted
)

// EntryFilter narrows ReadEntries. Zero values mean "no constraint".
type EntryFilter struct {
	AccountID string
	Category  models.Category
	Reference string
	Status    string
	Kinds     []models.EntryKind
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
	// Ascending returns the oldest entries first; the default is newest first.
	Ascending bool
}

// LedgerReader is the non-locking read side of the ledger store.
type LedgerReader interface {
	ReadAccount(ctx context.Context, id string) (*models.Account, error)
	ReadBalances(ctx context.Context, accountID string) ([]models.AccountBalance, error)
	ReadEntries(ctx context.Context, filter EntryFilter) ([]models.LedgerEntry, error)
	CountEntries(ctx context.Context, filter EntryFilter) (int64, error)
	ReadHold(ctx context.Context, reference string) (*models.Hold, error)
	ReadHolds(ctx context.Context, accountID, status string) ([]models.Hold, error)
	ListAccounts(ctx context.Context, ownerID string) ([]models.Account, error)
}

// LedgerTx is one atomic unit. Reads lock the returned rows until the unit
// ends; writes carry the version they were read at and fail with
// ErrTransactionAborted if it moved.
type LedgerTx interface {
	ReadAccount(id string) (*models.Account, error)
	ReadBalance(accountID string, category models.Category) (*models.AccountBalance, error)
	ReadEntries(filter EntryFilter) ([]models.LedgerEntry, error)
	ReadHold(reference string) (*models.Hold, error)
	ReadHolds(accountID, status string) ([]models.Hold, error)

	CreateAccount(account *models.Account, balances []models.AccountBalance) error
	WriteAccount(account *models.Account) error
	WriteBalance(balance *models.AccountBalance) error
	AppendEntry(entry *models.LedgerEntry) error
	CreateHold(hold *models.Hold) error
	WriteHold(hold *models.Hold) error
}

// LedgerRepository is the persistence capability the ledger engine runs on.
type LedgerRepository interface {
	LedgerReader

	// WithAtomicUnit runs fn in a single transaction. Any error from fn rolls
	// everything back. Conflicts with concurrent units surface as
	// ErrTransactionAborted and the caller must retry the whole unit.
	WithAtomicUnit(ctx context.Context, fn func(tx LedgerTx) error) error
}
