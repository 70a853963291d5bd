package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"bankcore/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_HoldReservesFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sender := f.open(t, 100000)
	recipient := f.open(t, 0)
	feeAccount := f.open(t, 0)

	res, err := f.svc.PlaceHold(ctx, HoldRequest{
		AccountID:    sender,
		Category:     models.CategoryChecking,
		Reference:    "TRF-10",
		Amount:       60000,
		Fee:          2500,
		Description:  "Rent",
		Credit:       &CreditLeg{AccountID: recipient, Category: models.CategoryChecking, Amount: 60000},
		FeeAccountID: feeAccount,
	})
	require.NoError(t, err)
	assert.Equal(t, models.HoldStatusActive, res.Hold.Status)
	assert.Equal(t, models.Amount(62500), res.Hold.Amount)
	assert.Equal(t, models.Amount(100000), res.Balance.Balance)
	assert.Equal(t, models.Amount(62500), res.Balance.Held)
	require.Len(t, res.Entries, 2)
	for _, e := range res.Entries {
		assert.Equal(t, models.EntryStatusPending, e.Status)
		assert.Equal(t, models.Amount(100000), e.BalanceAfter)
	}
	assert.Equal(t, "TRF-10-FEE", res.Entries[1].Reference)

	_, _, err = f.svc.ApplyLedgerChange(ctx, sender, models.CategoryChecking, -40000, EntryTemplate{Kind: models.KindWithdrawal})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	_, _, err = f.svc.ApplyLedgerChange(ctx, sender, models.CategoryChecking, -37500, EntryTemplate{Kind: models.KindWithdrawal})
	require.NoError(t, err)

	_, err = f.svc.PlaceHold(ctx, HoldRequest{AccountID: sender, Category: models.CategoryChecking, Reference: "TRF-11", Amount: 1})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	f.assertConsistent(t, sender)

	posted, err := f.svc.PostHold(ctx, "TRF-10")
	require.NoError(t, err)
	assert.Equal(t, models.HoldStatusPosted, posted.Hold.Status)
	assert.Equal(t, models.Amount(0), posted.Balance.Balance)
	assert.Equal(t, models.Amount(0), posted.Balance.Held)

	assert.Equal(t, models.Amount(60000), f.balance(t, recipient).Balance)
	assert.Equal(t, models.Amount(2500), f.balance(t, feeAccount).Balance)

	entries, err := f.svc.FindByReference(ctx, sender, "TRF-10")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.EntryStatusPending, entries[0].Status)
	assert.Equal(t, models.EntryStatusCompleted, entries[1].Status)

	_, err = f.svc.PostHold(ctx, "TRF-10")
	assert.ErrorIs(t, err, ErrHoldNotActive)
	_, err = f.svc.ReleaseHold(ctx, "TRF-10", "late")
	assert.ErrorIs(t, err, ErrHoldNotActive)

	f.assertConsistent(t, sender)
	f.assertConsistent(t, recipient)
	f.assertConsistent(t, feeAccount)
}

func TestLedgerService_ReleaseHold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sender := f.open(t, 50000)

	_, err := f.svc.PlaceHold(ctx, HoldRequest{
		AccountID: sender,
		Category:  models.CategoryChecking,
		Reference: "TRF-20",
		Amount:    30000,
		Fee:       3500,
	})
	require.NoError(t, err)

	res, err := f.svc.ReleaseHold(ctx, "TRF-20", "beneficiary bank rejected")
	require.NoError(t, err)
	assert.Equal(t, models.HoldStatusReleased, res.Hold.Status)
	assert.Equal(t, "beneficiary bank rejected", res.Hold.Reason)
	assert.Equal(t, models.Amount(50000), res.Balance.Balance)
	assert.Equal(t, models.Amount(0), res.Balance.Held)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, models.EntryStatusFailed, res.Entries[0].Status)
	assert.Equal(t, "beneficiary bank rejected", res.Entries[0].Metadata.String("failure_reason"))

	hold, err := f.svc.GetHold(ctx, "TRF-20")
	require.NoError(t, err)
	assert.Equal(t, models.HoldStatusReleased, hold.Status)

	active, err := f.svc.ListHolds(ctx, sender, models.HoldStatusActive)
	require.NoError(t, err)
	assert.Empty(t, active)

	f.assertConsistent(t, sender)
}

func TestLedgerService_PlaceHoldValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sender := f.open(t, 50000)

	tests := []struct {
		name    string
		req     HoldRequest
		wantErr error
	}{
		{name: "no reference", req: HoldRequest{AccountID: sender, Category: models.CategoryChecking, Amount: 100}, wantErr: ErrInvalidChange},
		{name: "zero amount", req: HoldRequest{AccountID: sender, Category: models.CategoryChecking, Reference: "H"}, wantErr: ErrInvalidChange},
		{name: "negative fee", req: HoldRequest{AccountID: sender, Category: models.CategoryChecking, Reference: "H", Amount: 1, Fee: -1}, wantErr: ErrInvalidChange},
		{name: "bad category", req: HoldRequest{AccountID: sender, Category: "gold", Reference: "H", Amount: 1}, wantErr: ErrInvalidChange},
		{
			name: "credit to itself",
			req: HoldRequest{AccountID: sender, Category: models.CategoryChecking, Reference: "H", Amount: 1,
				Credit: &CreditLeg{AccountID: sender, Category: models.CategoryChecking, Amount: 1}},
			wantErr: ErrInvalidChange,
		},
		{name: "unknown account", req: HoldRequest{AccountID: "nope", Category: models.CategoryChecking, Reference: "H", Amount: 1}, wantErr: ErrAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.PlaceHold(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := f.svc.PlaceHold(ctx, HoldRequest{AccountID: sender, Category: models.CategoryChecking, Reference: "DUP", Amount: 100})
	require.NoError(t, err)
	_, err = f.svc.PlaceHold(ctx, HoldRequest{AccountID: sender, Category: models.CategoryChecking, Reference: "DUP", Amount: 100})
	assert.ErrorIs(t, err, ErrDuplicateReference)

	_, err = f.svc.PostHold(ctx, "missing")
	assert.ErrorIs(t, err, ErrHoldNotFound)
}

func TestSequenceGap(t *testing.T) {
	entries := []models.LedgerEntry{{Seq: 1}, {Seq: 2}, {Seq: 4}}
	assert.Contains(t, sequenceGap(entries, 4), "expected 3")
	assert.Contains(t, sequenceGap(entries[:2], 3), "last seq 3")
	assert.Empty(t, sequenceGap(entries[:2], 2))
}

func TestLedgerService_HoldsRaceWithdrawals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.open(t, 100000)

	const (
		holds       = 3
		holdAmount  = models.Amount(30000)
		withdrawals = 10
		withdrawal  = models.Amount(10000)
	)

	// retry runs op until it settles or is refused for funds.
	retry := func(op func() error) (bool, error) {
		for attempt := 0; attempt < 1000; attempt++ {
			err := op()
			switch {
			case err == nil:
				return true, nil
			case errors.Is(err, ErrTransactionAborted):
				continue
			case errors.Is(err, ErrInsufficientFunds):
				return false, nil
			default:
				return false, err
			}
		}
		return false, fmt.Errorf("no progress after 1000 attempts")
	}

	var (
		wg                 sync.WaitGroup
		mu                 sync.Mutex
		placed, withdrawn  int
		refusedH, refusedW int
	)
	for i := 0; i < holds; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := retry(func() error {
				_, err := f.svc.PlaceHold(ctx, HoldRequest{
					AccountID: id,
					Category:  models.CategoryChecking,
					Reference: fmt.Sprintf("TRF-RACE-%d", i),
					Amount:    holdAmount,
				})
				return err
			})
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				placed++
			} else {
				refusedH++
			}
		}(i)
	}
	for i := 0; i < withdrawals; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := retry(func() error {
				_, _, err := f.svc.ApplyLedgerChange(ctx, id, models.CategoryChecking, -withdrawal, EntryTemplate{Kind: models.KindWithdrawal})
				return err
			})
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				withdrawn++
			} else {
				refusedW++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, holds, placed+refusedH)
	assert.Equal(t, withdrawals, withdrawn+refusedW)
	assert.LessOrEqual(t, int64(placed)*int64(holdAmount)+int64(withdrawn)*int64(withdrawal), int64(100000))

	b := f.balance(t, id)
	assert.Equal(t, models.Amount(100000)-models.Amount(withdrawn)*withdrawal, b.Balance)
	assert.Equal(t, models.Amount(placed)*holdAmount, b.Held)
	assert.GreaterOrEqual(t, int64(b.Available()), int64(0))
	f.assertConsistent(t, id)

	active, err := f.svc.ListHolds(ctx, id, models.HoldStatusActive)
	require.NoError(t, err)
	assert.Len(t, active, placed)
}
