package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domainerrors "bankcore/internal/errors"
	"bankcore/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLSTATE codes that mean "retry the transaction".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

type ledgerRepository struct {
	db        *gorm.DB
	txTimeout time.Duration
}

// NewLedgerRepository returns the postgres-backed ledger store. Every atomic
// unit runs SERIALIZABLE with row locks taken by the tx reads.
func NewLedgerRepository(db *gorm.DB, txTimeout time.Duration) LedgerRepository {
	return &ledgerRepository{
		db:        db,
		txTimeout: txTimeout,
	}
}

func (r *ledgerRepository) WithAtomicUnit(ctx context.Context, fn func(tx LedgerTx) error) error {
	if r.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.txTimeout)
		defer cancel()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerTx{db: tx, lock: true})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	return classifyTxError(err)
}

// classifyTxError maps driver failures onto the domain taxonomy and leaves
// domain errors raised inside the unit untouched.
func classifyTxError(err error) error {
	if err == nil {
		return nil
	}
	var de *domainerrors.DomainError
	if errors.As(err, &de) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrTransactionAborted, pgErr.Message)
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicateReference, pgErr.ConstraintName)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTransactionAborted, err)
	}
	return err
}

func (r *ledgerRepository) reader(ctx context.Context) *ledgerTx {
	return &ledgerTx{db: r.db.WithContext(ctx)}
}

func (r *ledgerRepository) ReadAccount(ctx context.Context, id string) (*models.Account, error) {
	return r.reader(ctx).ReadAccount(id)
}

func (r *ledgerRepository) ReadBalances(ctx context.Context, accountID string) ([]models.AccountBalance, error) {
	var balances []models.AccountBalance
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("category").
		Find(&balances).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read balances: %w", err)
	}
	if len(balances) == 0 {
		if _, err := r.ReadAccount(ctx, accountID); err != nil {
			return nil, err
		}
	}
	return balances, nil
}

func (r *ledgerRepository) ReadEntries(ctx context.Context, filter EntryFilter) ([]models.LedgerEntry, error) {
	return r.reader(ctx).ReadEntries(filter)
}

func (r *ledgerRepository) CountEntries(ctx context.Context, filter EntryFilter) (int64, error) {
	var total int64
	q := applyEntryFilter(r.db.WithContext(ctx).Model(&models.LedgerEntry{}), filter)
	if err := q.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return total, nil
}

func (r *ledgerRepository) ReadHold(ctx context.Context, reference string) (*models.Hold, error) {
	return r.reader(ctx).ReadHold(reference)
}

func (r *ledgerRepository) ReadHolds(ctx context.Context, accountID, status string) ([]models.Hold, error) {
	return r.reader(ctx).ReadHolds(accountID, status)
}

func (r *ledgerRepository) ListAccounts(ctx context.Context, ownerID string) ([]models.Account, error) {
	var accounts []models.Account
	q := r.db.WithContext(ctx).Order("created_at")
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	if err := q.Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// ledgerTx serves both the locking reads inside a unit and the plain reads
// outside one.
type ledgerTx struct {
	db   *gorm.DB
	lock bool
}

func (t *ledgerTx) query() *gorm.DB {
	if t.lock {
		return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return t.db
}

func (t *ledgerTx) ReadAccount(id string) (*models.Account, error) {
	var account models.Account
	if err := t.query().Where("id = ?", id).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	return &account, nil
}

func (t *ledgerTx) ReadBalance(accountID string, category models.Category) (*models.AccountBalance, error) {
	var balance models.AccountBalance
	err := t.query().
		Where("account_id = ? AND category = ?", accountID, category).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrAccountNotFound, accountID, category)
		}
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}
	return &balance, nil
}

func applyEntryFilter(q *gorm.DB, f EntryFilter) *gorm.DB {
	if f.AccountID != "" {
		q = q.Where("account_id = ?", f.AccountID)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Reference != "" {
		q = q.Where("reference = ?", f.Reference)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if len(f.Kinds) > 0 {
		q = q.Where("kind IN ?", f.Kinds)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		q = q.Where("created_at < ?", f.Until)
	}
	return q
}

func (t *ledgerTx) ReadEntries(f EntryFilter) ([]models.LedgerEntry, error) {
	q := applyEntryFilter(t.db, f)
	if f.Ascending {
		q = q.Order("account_id, seq")
	} else {
		q = q.Order("account_id, seq DESC")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var entries []models.LedgerEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}
	return entries, nil
}

func (t *ledgerTx) ReadHold(reference string) (*models.Hold, error) {
	var hold models.Hold
	if err := t.query().Where("reference = ?", reference).First(&hold).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrHoldNotFound, reference)
		}
		return nil, fmt.Errorf("failed to read hold: %w", err)
	}
	return &hold, nil
}

func (t *ledgerTx) ReadHolds(accountID, status string) ([]models.Hold, error) {
	q := t.db.Order("created_at")
	if accountID != "" {
		q = q.Where("account_id = ?", accountID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var holds []models.Hold
	if err := q.Find(&holds).Error; err != nil {
		return nil, fmt.Errorf("failed to read holds: %w", err)
	}
	return holds, nil
}

func (t *ledgerTx) CreateAccount(account *models.Account, balances []models.AccountBalance) error {
	if err := t.db.Create(account).Error; err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	for i := range balances {
		balances[i].AccountID = account.ID
	}
	if len(balances) > 0 {
		if err := t.db.Create(&balances).Error; err != nil {
			return fmt.Errorf("failed to create balances: %w", err)
		}
	}
	return nil
}

func (t *ledgerTx) WriteAccount(account *models.Account) error {
	now := time.Now()
	res := t.db.Model(&models.Account{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]interface{}{
			"status":     account.Status,
			"last_seq":   account.LastSeq,
			"version":    account.Version + 1,
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to write account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: account %s changed concurrently", ErrTransactionAborted, account.ID)
	}
	account.Version++
	account.UpdatedAt = now
	return nil
}

func (t *ledgerTx) WriteBalance(balance *models.AccountBalance) error {
	now := time.Now()
	res := t.db.Model(&models.AccountBalance{}).
		Where("account_id = ? AND category = ? AND version = ?", balance.AccountID, balance.Category, balance.Version).
		Updates(map[string]interface{}{
			"balance":    balance.Balance,
			"held":       balance.Held,
			"version":    balance.Version + 1,
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to write balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: balance %s/%s changed concurrently", ErrTransactionAborted, balance.AccountID, balance.Category)
	}
	balance.Version++
	balance.UpdatedAt = now
	return nil
}

func (t *ledgerTx) AppendEntry(entry *models.LedgerEntry) error {
	if err := t.db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

func (t *ledgerTx) CreateHold(hold *models.Hold) error {
	if err := t.db.Create(hold).Error; err != nil {
		return fmt.Errorf("failed to create hold: %w", err)
	}
	return nil
}

func (t *ledgerTx) WriteHold(hold *models.Hold) error {
	now := time.Now()
	res := t.db.Model(&models.Hold{}).
		Where("id = ? AND version = ?", hold.ID, hold.Version).
		Updates(map[string]interface{}{
			"status":     hold.Status,
			"reason":     hold.Reason,
			"version":    hold.Version + 1,
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to write hold: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: hold %s changed concurrently", ErrTransactionAborted, hold.Reference)
	}
	hold.Version++
	hold.UpdatedAt = now
	return nil
}
