package repositories_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"bankcore/internal/models"
	"bankcore/internal/repositories"
	"bankcore/internal/services/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Runs against a real database only when LEDGER_TEST_DATABASE_URL is set.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LEDGER_TEST_DATABASE_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))
	t.Cleanup(func() { repositories.Close(db) })
	return db
}

func TestLedgerRepository_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := ledger.NewService(repositories.NewLedgerRepository(db, 0), nil, ledger.Config{}, nil)

	account, err := svc.OpenAccount(ctx, "it-owner", "USD")
	require.NoError(t, err)
	_, _, err = svc.ApplyLedgerChange(ctx, account.ID, models.CategoryChecking, 100000, ledger.EntryTemplate{
		Kind:      models.KindDeposit,
		Reference: ledger.NewReference("DEP"),
	})
	require.NoError(t, err)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tmpl := ledger.EntryTemplate{Kind: models.KindWithdrawal, Reference: ledger.NewReference("WDL")}
			for attempt := 0; attempt < 20; attempt++ {
				_, _, err := svc.ApplyLedgerChange(ctx, account.ID, models.CategoryChecking, -15000, tmpl)
				if errors.Is(err, ledger.ErrTransactionAborted) {
					continue
				}
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
				return
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, succeeded)
	balance, err := svc.GetBalance(ctx, account.ID, models.CategoryChecking)
	require.NoError(t, err)
	assert.Equal(t, models.Amount(10000), balance.Balance)

	report, err := svc.VerifyConsistency(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent, report.Discrepancy)
}

func TestLedgerRepository_DuplicateReference(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := ledger.NewService(repositories.NewLedgerRepository(db, 0), nil, ledger.Config{}, nil)

	account, err := svc.OpenAccount(ctx, "it-owner", "USD")
	require.NoError(t, err)

	tmpl := ledger.EntryTemplate{Kind: models.KindDeposit, Reference: ledger.NewReference("DEP")}
	_, _, err = svc.ApplyLedgerChange(ctx, account.ID, models.CategoryChecking, 5000, tmpl)
	require.NoError(t, err)
	_, _, err = svc.ApplyLedgerChange(ctx, account.ID, models.CategoryChecking, 5000, tmpl)
	assert.ErrorIs(t, err, ledger.ErrDuplicateReference)
}

func TestLedgerRepository_HoldsRaceWithdrawals(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := ledger.NewService(repositories.NewLedgerRepository(db, 0), nil, ledger.Config{}, nil)

	account, err := svc.OpenAccount(ctx, "it-owner", "USD")
	require.NoError(t, err)
	_, _, err = svc.ApplyLedgerChange(ctx, account.ID, models.CategoryChecking, 100000, ledger.EntryTemplate{
		Kind:      models.KindDeposit,
		Reference: ledger.NewReference("DEP"),
	})
	require.NoError(t, err)

	// settle retries aborted transactions and reports whether op went through.
	settle := func(op func() error) bool {
		for attempt := 0; attempt < 20; attempt++ {
			err := op()
			if errors.Is(err, ledger.ErrTransactionAborted) {
				continue
			}
			if err != nil && !errors.Is(err, ledger.ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
			return err == nil
		}
		return false
	}

	var (
		wg                sync.WaitGroup
		mu                sync.Mutex
		placed, withdrawn int
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref := ledger.NewReference("TRF")
			ok := settle(func() error {
				_, err := svc.PlaceHold(ctx, ledger.HoldRequest{
					AccountID: account.ID,
					Category:  models.CategoryChecking,
					Reference: ref,
					Amount:    30000,
				})
				return err
			})
			if ok {
				mu.Lock()
				placed++
				mu.Unlock()
			}
		}()
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tmpl := ledger.EntryTemplate{Kind: models.KindWithdrawal, Reference: ledger.NewReference("WDL")}
			ok := settle(func() error {
				_, _, err := svc.ApplyLedgerChange(ctx, account.ID, models.CategoryChecking, -10000, tmpl)
				return err
			})
			if ok {
				mu.Lock()
				withdrawn++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, placed*30000+withdrawn*10000, 100000)
	balance, err := svc.GetBalance(ctx, account.ID, models.CategoryChecking)
	require.NoError(t, err)
	assert.Equal(t, models.Amount(100000-withdrawn*10000), balance.Balance)
	assert.Equal(t, models.Amount(placed*30000), balance.Held)
	assert.GreaterOrEqual(t, int64(balance.Available()), int64(0))

	report, err := svc.VerifyConsistency(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent, report.Discrepancy)
}
