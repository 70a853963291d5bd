package ledger

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	domainerrors "bankcore/internal/errors"
	"bankcore/internal/models"
	"bankcore/internal/repositories"

	"github.com/google/uuid"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type service struct {
	repo     repositories.LedgerRepository
	activity ActivityView
	config   Config
	metrics  MetricsCollector
}

// NewService creates a new ledger engine
func NewService(
	repo repositories.LedgerRepository,
	activity ActivityView,
	config Config,
	metrics MetricsCollector,
) Service {
	if repo == nil {
		panic("repo is required")
	}

	if config.ActivityLimit <= 0 {
		config.ActivityLimit = 100
	}
	if config.FeeIncomeKind == "" {
		config.FeeIncomeKind = models.KindAdjustmentCredit
	}
	if !config.FeeIncomeKind.IsCredit() {
		panic("fee income kind must be a credit kind")
	}

	// Activity view and metrics are optional
	if activity == nil {
		activity = noopActivity{}
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}

	return &service{
		repo:     repo,
		activity: activity,
		config:   config,
		metrics:  metrics,
	}
}

func (s *service) ApplyLedgerChange(ctx context.Context, accountID string, category models.Category, delta models.Amount, tmpl EntryTemplate) (models.Amount, *models.LedgerEntry, error) {
	results, err := s.ApplyLedgerChangeSet(ctx, []Change{{
		AccountID: accountID,
		Category:  category,
		Delta:     delta,
		Entry:     tmpl,
	}})
	if err != nil {
		return 0, nil, err
	}
	return results[0].NewBalance, &results[0].Entry, nil
}

func (s *service) ApplyLedgerChangeSet(ctx context.Context, changes []Change) ([]Result, error) {
	const op = "apply_change_set"
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration(op, time.Since(start)) }()

	changes, err := normalizeChanges(changes)
	if err != nil {
		s.metrics.RecordError(op, "invalid_change")
		return nil, err
	}

	var results []Result
	err = s.repo.WithAtomicUnit(ctx, func(tx repositories.LedgerTx) error {
		u := newUnit(tx, time.Now().UTC())

		keys := make([]balanceKey, len(changes))
		for i, c := range changes {
			keys[i] = balanceKey{accountID: c.AccountID, category: c.Category}
		}
		if err := u.lock(keys); err != nil {
			return err
		}

		results = make([]Result, 0, len(changes))
		for _, c := range changes {
			account := u.account(c.AccountID)
			balance := u.balance(c.AccountID, c.Category)

			if c.Delta < 0 {
				if err := checkDebit(account); err != nil {
					return err
				}
				if balance.Available()+c.Delta < 0 {
					return insufficient(balance, -c.Delta)
				}
			} else if err := checkCredit(account); err != nil {
				return err
			}

			balance.Balance += c.Delta
			entry, err := u.append(balance, c.Entry.Kind, abs(c.Delta), models.EntryStatusCompleted, c.Entry)
			if err != nil {
				return err
			}
			results = append(results, Result{Entry: entry, NewBalance: balance.Balance})
		}
		return u.flush()
	})
	if err != nil {
		s.recordFailure(op, err)
		return nil, err
	}

	s.metrics.RecordOperationResult(op, "success")
	entries := make([]models.LedgerEntry, len(results))
	for i, r := range results {
		entries[i] = r.Entry
		s.metrics.RecordEntry(r.Entry.Kind, r.Entry.Amount)
	}
	s.publish(ctx, entries)
	return results, nil
}

// normalizeChanges validates each leg and fills in a shared reference for
// legs that carry none.
func normalizeChanges(changes []Change) ([]Change, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("%w: empty change set", ErrInvalidChange)
	}

	out := make([]Change, len(changes))
	copy(out, changes)

	var generated string
	seen := make(map[string]bool)
	for i := range out {
		c := &out[i]
		switch {
		case c.AccountID == "":
			return nil, fmt.Errorf("%w: leg %d has no account", ErrInvalidChange, i)
		case !c.Category.Valid():
			return nil, fmt.Errorf("%w: leg %d has unknown category %q", ErrInvalidChange, i, c.Category)
		case c.Delta == 0:
			return nil, fmt.Errorf("%w: leg %d has zero delta", ErrInvalidChange, i)
		case !c.Entry.Kind.Valid():
			return nil, fmt.Errorf("%w: leg %d has unknown kind %q", ErrInvalidChange, i, c.Entry.Kind)
		case (c.Delta > 0) != c.Entry.Kind.IsCredit():
			return nil, fmt.Errorf("%w: leg %d kind %s does not match delta %d", ErrInvalidChange, i, c.Entry.Kind, c.Delta)
		}

		if c.Entry.Reference == "" {
			if generated == "" {
				generated = NewReference("LED")
			}
			c.Entry.Reference = generated
		}
		key := c.AccountID + "|" + string(c.Category) + "|" + c.Entry.Reference
		if seen[key] {
			return nil, fmt.Errorf("%w: reference %s used twice on %s/%s", ErrInvalidChange, c.Entry.Reference, c.AccountID, c.Category)
		}
		seen[key] = true
	}
	return out, nil
}

// NewReference returns a short unique reference with the given prefix.
func NewReference(prefix string) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return prefix + "-" + id[:12]
}

func abs(a models.Amount) models.Amount {
	if a < 0 {
		return -a
	}
	return a
}

func (s *service) recordFailure(op string, err error) {
	code := domainerrors.Code(err)
	if code == "" {
		code = "internal"
	}
	s.metrics.RecordOperationResult(op, "failure")
	s.metrics.RecordError(op, strings.ToLower(code))
}

// publish pushes committed entries to the recent-activity view. The ledger is
// authoritative, so failures are only logged.
func (s *service) publish(ctx context.Context, entries []models.LedgerEntry) {
	if len(entries) == 0 {
		return
	}
	if err := s.activity.Append(context.WithoutCancel(ctx), entries...); err != nil {
		log.Printf("Failed to update recent activity: %v", err)
	}
}

func (s *service) OpenAccount(ctx context.Context, ownerID, currency string) (*models.Account, error) {
	ownerID = strings.TrimSpace(ownerID)
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", domainerrors.ErrValidation)
	}
	if !currencyPattern.MatchString(currency) {
		return nil, fmt.Errorf("%w: invalid currency %q", domainerrors.ErrValidation, currency)
	}

	account := &models.Account{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		Currency: currency,
		Status:   models.AccountStatusActive,
	}
	balances := make([]models.AccountBalance, len(models.Categories))
	for i, c := range models.Categories {
		balances[i] = models.AccountBalance{Category: c}
	}

	err := s.repo.WithAtomicUnit(ctx, func(tx repositories.LedgerTx) error {
		return tx.CreateAccount(account, balances)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open account: %w", err)
	}
	log.Printf("Opened account %s for owner %s (%s)", account.ID, ownerID, currency)
	return account, nil
}

func (s *service) SetAccountStatus(ctx context.Context, accountID, status string) (*models.Account, error) {
	switch status {
	case models.AccountStatusActive, models.AccountStatusFrozen, models.AccountStatusClosed:
	default:
		return nil, fmt.Errorf("%w: unknown account status %q", domainerrors.ErrValidation, status)
	}

	var updated *models.Account
	err := s.repo.WithAtomicUnit(ctx, func(tx repositories.LedgerTx) error {
		account, err := tx.ReadAccount(accountID)
		if err != nil {
			return err
		}
		if account.Status == models.AccountStatusClosed && status != models.AccountStatusClosed {
			return fmt.Errorf("%w: closed accounts cannot be reopened", domainerrors.ErrValidation)
		}
		account.Status = status
		if err := tx.WriteAccount(account); err != nil {
			return err
		}
		updated = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	return s.repo.ReadAccount(ctx, accountID)
}

func (s *service) ListAccounts(ctx context.Context, ownerID string) ([]models.Account, error) {
	return s.repo.ListAccounts(ctx, ownerID)
}

func (s *service) GetBalances(ctx context.Context, accountID string) ([]models.AccountBalance, error) {
	return s.repo.ReadBalances(ctx, accountID)
}

func (s *service) GetBalance(ctx context.Context, accountID string, category models.Category) (*models.AccountBalance, error) {
	balances, err := s.repo.ReadBalances(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for i := range balances {
		if balances[i].Category == category {
			return &balances[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrAccountNotFound, accountID, category)
}

func (s *service) ListEntries(ctx context.Context, filter EntryFilter) ([]models.LedgerEntry, int64, error) {
	entries, err := s.repo.ReadEntries(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountEntries(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *service) FindByReference(ctx context.Context, accountID, reference string) ([]models.LedgerEntry, error) {
	return s.repo.ReadEntries(ctx, EntryFilter{
		AccountID: accountID,
		Reference: reference,
		Ascending: true,
	})
}

func (s *service) RecentActivity(ctx context.Context, accountID string, n int) ([]models.LedgerEntry, error) {
	if n <= 0 || n > s.config.ActivityLimit {
		n = s.config.ActivityLimit
	}

	entries, err := s.activity.Recent(ctx, accountID, n)
	if err == nil && len(entries) > 0 {
		return entries, nil
	}
	if err != nil {
		log.Printf("Failed to read recent activity for %s, using ledger: %v", accountID, err)
	}

	if _, err := s.repo.ReadAccount(ctx, accountID); err != nil {
		return nil, err
	}
	if err := s.RebuildRecentActivity(ctx, accountID); err != nil {
		log.Printf("Failed to rebuild recent activity for %s: %v", accountID, err)
	}
	return s.repo.ReadEntries(ctx, EntryFilter{AccountID: accountID, Limit: n})
}

func (s *service) RebuildRecentActivity(ctx context.Context, accountID string) error {
	entries, err := s.repo.ReadEntries(ctx, EntryFilter{AccountID: accountID, Limit: s.config.ActivityLimit})
	if err != nil {
		return err
	}
	return s.activity.Replace(ctx, accountID, entries)
}

type noopActivity struct{}

func (noopActivity) Append(context.Context, ...models.LedgerEntry) error { return nil }
func (noopActivity) Recent(context.Context, string, int) ([]models.LedgerEntry, error) {
	return nil, nil
}
func (noopActivity) Replace(context.Context, string, []models.LedgerEntry) error { return nil }
