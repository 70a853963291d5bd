package transfer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	domainerrors "bankcore/internal/errors"
	"bankcore/internal/models"
	"bankcore/internal/repositories/memory"
	"bankcore/internal/services/ledger"
	"bankcore/internal/services/rates"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) CheckChallenge(ctx context.Context, subjectID string, purpose models.Purpose, code string) (bool, error) {
	args := m.Called(ctx, subjectID, purpose, code)
	return args.Bool(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, destination string, purpose models.Purpose, payload models.Notification) error {
	args := m.Called(ctx, destination, purpose, payload)
	return args.Error(0)
}

var fixedNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memory.LedgerStore
	ledger    ledger.Service
	recurring *memory.RecurringStore
	svc       Service
	feeAcct   string

	mu     sync.Mutex
	sleeps []time.Duration
}

type deps struct {
	verifier Verifier
	notifier Notifier
	config   func(*Config)
}

func newFixture(t *testing.T, d deps) *fixture {
	t.Helper()
	store := memory.NewLedgerStore()
	f := &fixture{
		store:     store,
		ledger:    ledger.NewService(store, nil, ledger.Config{}, nil),
		recurring: memory.NewRecurringStore(),
	}

	fee, err := f.ledger.OpenAccount(context.Background(), "bank", "USD")
	require.NoError(t, err)
	f.feeAcct = fee.ID

	cfg := Config{
		HighCostSurcharge:  1000,
		HighCostCountries:  []string{"ng"},
		SpreadBps:          50,
		ChallengeThreshold: 500000,
		FeeAccountID:       fee.ID,
		MaxRetries:         3,
		RetryBaseDelay:     10 * time.Millisecond,
	}
	if d.config != nil {
		d.config(&cfg)
	}

	source := rates.NewStaticSource("USD", map[string]decimal.Decimal{
		"EUR": decimal.RequireFromString("0.92"),
		"GBP": decimal.RequireFromString("0.79"),
	})
	f.svc = NewService(f.ledger, source, d.verifier, d.notifier, f.recurring, cfg, nil,
		WithClock(func() time.Time { return fixedNow }),
		WithSleeper(func(_ context.Context, d time.Duration) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.sleeps = append(f.sleeps, d)
			return nil
		}),
	)
	return f
}

func (f *fixture) open(t *testing.T, owner, currency string, deposit models.Amount) string {
	t.Helper()
	ctx := context.Background()
	account, err := f.ledger.OpenAccount(ctx, owner, currency)
	require.NoError(t, err)
	if deposit > 0 {
		_, _, err = f.ledger.ApplyLedgerChange(ctx, account.ID, models.CategoryChecking, deposit, ledger.EntryTemplate{
			Kind:        models.KindDeposit,
			Description: "Opening deposit",
		})
		require.NoError(t, err)
	}
	return account.ID
}

func (f *fixture) balance(t *testing.T, accountID string, category models.Category) *models.AccountBalance {
	t.Helper()
	b, err := f.ledger.GetBalance(context.Background(), accountID, category)
	require.NoError(t, err)
	return b
}

func (f *fixture) entryCount(t *testing.T, accountID string) int {
	t.Helper()
	_, total, err := f.ledger.ListEntries(context.Background(), ledger.EntryFilter{AccountID: accountID})
	require.NoError(t, err)
	return int(total)
}

func (f *fixture) assertConsistent(t *testing.T, accountIDs ...string) {
	t.Helper()
	for _, id := range accountIDs {
		report, err := f.ledger.VerifyConsistency(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, report.Consistent, report.Discrepancy)
	}
}

func onUs(name, accountID string) Recipient {
	return Recipient{Name: name, AccountID: accountID}
}

func usRecipient() Recipient {
	return Recipient{Name: "Jane Roe", AccountNumber: "000123456789", RoutingNumber: "021000021", Country: "US"}
}

func TestNewService_Panics(t *testing.T) {
	store := memory.NewLedgerStore()
	l := ledger.NewService(store, nil, ledger.Config{}, nil)

	assert.Panics(t, func() { NewService(nil, nil, nil, nil, nil, Config{}, nil) })
	assert.Panics(t, func() { NewService(l, nil, nil, nil, nil, Config{FeeIncomeKind: models.KindFee}, nil) })
	assert.Panics(t, func() { NewService(l, nil, nil, nil, nil, Config{SpreadBps: 10000}, nil) })
	assert.NotPanics(t, func() { NewService(l, nil, nil, nil, nil, Config{}, nil) })
}

func TestTransferService_ExpressTransferWithFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, deps{})
	a := f.open(t, "owner-a", "USD", 100000)
	b := f.open(t, "owner-b", "USD", 0)

	intent := Intent{
		OwnerID:         "owner-a",
		SenderAccountID: a,
		Class:           models.ClassDomestic,
		Tier:            models.TierExpress,
		Amount:          20000,
		Currency:        "USD",
		Recipient:       onUs("Account B", b),
		IdempotencyKey:  "client-key-1",
	}

	pricing, err := f.svc.PriceTransfer(ctx, intent)
	require.NoError(t, err)
	assert.Equal(t, models.Amount(4500), pricing.Fee)
	assert.Equal(t, models.Amount(24500), pricing.TotalDebit)

	res, err := f.svc.SettleTransfer(ctx, intent, pricing, "")
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusCompleted, res.Status)
	assert.Equal(t, models.TransferPosted, res.State)
	assert.Equal(t, "755.00", res.NewBalance.String())
	assert.Equal(t, res.Reference+"-FEE", res.FeeReference)
	assert.True(t, strings.HasPrefix(res.Reference, "TRF-"))
	assert.False(t, res.Replayed)

	out, err := f.ledger.FindByReference(ctx, a, res.Reference)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, models.KindTransferOut, out[0].Kind)
	assert.Equal(t, "200.00", out[0].Amount.String())
	assert.Equal(t, models.EntryStatusCompleted, out[0].Status)

	fee, err := f.ledger.FindByReference(ctx, a, res.FeeReference)
	require.NoError(t, err)
	require.Len(t, fee, 1)
	assert.Equal(t, models.KindFee, fee[0].Kind)
	assert.Equal(t, "45.00", fee[0].Amount.String())
	assert.Equal(t, models.EntryStatusCompleted, fee[0].Status)

	assert.Equal(t, models.Amount(20000), f.balance(t, b, models.CategoryChecking).Balance)
	assert.Equal(t, models.Amount(4500), f.balance(t, f.feeAcct, models.CategoryChecking).Balance)

	t.Run("same idempotency key replays", func(t *testing.T) {
		before := f.entryCount(t, a)

		again, err := f.svc.SettleTransfer(ctx, intent, nil, "")
		require.NoError(t, err)
		assert.True(t, again.Replayed)
		assert.Equal(t, res.Reference, again.Reference)
		assert.Equal(t, res.FeeReference, again.FeeReference)
		assert.Equal(t, "755.00", again.NewBalance.String())
		assert.Equal(t, before, f.entryCount(t, a))
		assert.Equal(t, models.Amount(20000), f.balance(t, b, models.CategoryChecking).Balance)
	})

	t.Run("same key with a different amount is rejected", func(t *testing.T) {
		changed := intent
		changed.Amount = 10000
		_, err := f.svc.SettleTransfer(ctx, changed, nil, "")
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, "755.00", f.balance(t, a, models.CategoryChecking).Balance.String())
	})

	f.assertConsistent(t, a, b, f.feeAcct)
}

func TestTransferService_Conservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, deps{config: func(c *Config) { c.FeeAccountID = "" }})
	a := f.open(t, "owner-a", "USD", 100000)
	b := f.open(t, "owner-b", "USD", 5000)

	res, err := f.svc.SettleTransfer(ctx, Intent{
		OwnerID:         "owner-a",
		SenderAccountID: a,
		Class:           models.ClassDomestic,
		Tier:            models.TierInstant,
		Amount:          12345,
		Currency:        "USD",
		Recipient:       onUs("Account B", b),
	}, nil, "")
	require.NoError(t, err)

	before := models.Amount(100000 + 5000)
	after := f.balance(t, a, models.CategoryChecking).Balance + f.balance(t, b, models.CategoryChecking).Balance
	assert.Equal(t, before, after+res.Pricing.Fee)
	f.assertConsistent(t, a, b)
}

func TestTransferService_InternalMoveBetweenCategories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, deps{})
	a := f.open(t, "owner-a", "USD", 100000)

	res, err := f.svc.SettleTransfer(ctx, Intent{
		OwnerID:         "owner-a",
		SenderAccountID: a,
		Class:           models.ClassInternal,
		Tier:            models.TierInstant,
		Amount:          30000,
		Currency:        "USD",
		Recipient:       Recipient{AccountID: a, Category: models.CategorySavings},
	}, nil, "")
	require.NoError(t, err)
	assert.Empty(t, res.FeeReference)
	assert.Len(t, res.Entries, 2)

	assert.Equal(t, models.Amount(70000), f.balance(t, a, models.CategoryChecking).Balance)
	assert.Equal(t, models.Amount(30000), f.balance(t, a, models.CategorySavings).Balance)

	entries, err := f.ledger.FindByReference(ctx, a, res.Reference)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "both legs share the reference")
	f.assertConsistent(t, a)
}

func TestTransferService_CrossCurrency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, deps{})
	a := f.open(t, "owner-a", "USD", 100000)
	b := f.open(t, "owner-b", "EUR", 0)

	intent := Intent{
		OwnerID:         "owner-a",
		SenderAccountID: a,
		Class:           models.ClassInternational,
		Tier:            models.TierExpress,
		Amount:          20000,
		Currency:        "USD",
		TargetCurrency:  "EUR",
		Recipient:       onUs("Konto B", b),
	}
	res, err := f.svc.SettleTransfer(ctx, intent, nil, "")
	require.NoError(t, err)

	assert.Equal(t, "0.9154", res.Pricing.ExchangeRate.String())
	assert.Equal(t, "183.08", res.Pricing.ConvertedAmount.String())
	assert.Equal(t, "735.00", f.balance(t, a, models.CategoryChecking).Balance.String())
	assert.Equal(t, "183.08", f.balance(t, b, models.CategoryChecking).Balance.String())
	assert.Equal(t, "0.9154", res.Entries[0].Metadata.String("exchange_rate"))
}

func TestTransferService_PriceTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, deps{})

	tests := []struct {
		name          string
		intent        Intent
		wantFee       models.Amount
		wantConverted models.Amount
		wantErr       error
	}{
		{
			name:          "domestic express flat fee",
			intent:        Intent{Class: models.ClassDomestic, Tier: models.TierExpress, Amount: 20000, Currency: "USD"},
			wantFee:       4500,
			wantConverted: 20000,
		},
		{
			name:          "internal moves are free",
			intent:        Intent{Class: models.ClassInternal, Tier: models.TierInstant, Amount: 20000, Currency: "USD"},
			wantFee:       0,
			wantConverted: 20000,
		},
		{
			name: "high cost destination adds surcharge",
			intent: Intent{Class: models.ClassInternational, Tier: models.TierStandard, Amount: 20000, Currency: "USD",
				Recipient: Recipient{Country: "NG"}},
			wantFee:       4500,
			wantConverted: 20000,
		},
		{
			name: "conversion applies the spread",
			intent: Intent{Class: models.ClassInternational, Tier: models.TierStandard, Amount: 100000, Currency: "USD",
				TargetCurrency: "eur", Recipient: Recipient{Country: "DE"}},
			wantFee:       3500,
			wantConverted: 91540,
		},
		{
			name: "cross rate through the base",
			intent: Intent{Class: models.ClassInternational, Tier: models.TierStandard, Amount: 100000, Currency: "EUR",
				TargetCurrency: "GBP", Recipient: Recipient{Country: "GB"}},
			wantFee:       3500,
			wantConverted: 85440,
		},
		{
			name:    "tier not offered",
			intent:  Intent{Class: models.ClassInternational, Tier: models.TierInstant, Amount: 20000, Currency: "USD"},
			wantErr: ErrValidation,
		},
		{
			name: "missing rate",
			intent: Intent{Class: models.ClassInternational, Tier: models.TierStandard, Amount: 20000, Currency: "USD",
				TargetCurrency: "JPY"},
			wantErr: ErrRateUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.svc.PriceTransfer(ctx, tt.intent)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFee, p.Fee)
			assert.Equal(t, tt.intent.Amount+tt.wantFee, p.TotalDebit)
			assert.Equal(t, tt.wantConverted, p.ConvertedAmount)
		})
	}
}

func TestTransferService_StaleQuoteRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, deps{})
	a := f.open(t, "owner-a", "USD", 100000)
	b := f.open(t, "owner-b", "USD", 0)

	intent := Intent{
		OwnerID: "owner-a", SenderAccountID: a, Class: models.ClassDomestic, Tier: models.TierExpress,
		Amount: 20000, Currency: "USD", Recipient: onUs("B", b),
	}
	quote, err := f.svc.PriceTransfer(ctx, intent)
	require.NoError(t, err)
	quote.Fee = 100

	_, err = f.svc.SettleTransfer(ctx, intent, quote, "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "pricing", verr.Violations[0].Field)
	assert.Equal(t, models.Amount(100000), f.balance(t, a, models.CategoryChecking).Balance)
}

func TestTransferService_ValidateReportsAllViolations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, deps{})
	a := f.open(t, "owner-a", "USD", 100000)

	err := f.svc.ValidateTransfer(ctx, Intent{
		OwnerID:         "owner-a",
		SenderAccountID: a,
		Class:           models.ClassDomestic,
		Tier:            models.TierStandard,
		Amount:          0,
		Currency:        "US",
		Recipient:       Recipient{Country: "US", AccountNumber: "12", RoutingNumber: "123456789"},
		Description:     strings.Repeat("x", 141),
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ErrValidation)

	fields := make([]string, len(verr.Violations))
	for i, v := range verr.Violations {
		fields[i] = v.Field
	}
	assert.ElementsMatch(t, []string{
		"amount",
		"currency",
		"description",
		"recipient.account_number",
		"recipient.name",
		"recipient.routing_number",
	}, fields)
}

func TestTransferService_ValidationRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, deps{})
	a := f.open(t, "owner-a", "USD", 100000)
	mine := f.open(t, "owner-a", "USD", 0)
	other := f.open(t, "owner-b", "USD", 0)
	frozen := f.open(t, "owner-a", "USD", 0)
	_, err := f.ledger.SetAccountStatus(ctx, frozen, models.AccountStatusFrozen)
	require.NoError(t, err)

	base := Intent{OwnerID: "owner-a", SenderAccountID: a, Amount: 10000, Currency: "USD"}
	with := func(fn func(*Intent)) Intent {
		i := base
		fn(&i)
		return i
	}

	tests := []struct {
		name      string
		intent    Intent
		wantField string
	}{
		{
			name: "valid domestic wire",
			intent: with(func(i *Intent) {
				i.Class, i.Tier, i.Recipient = models.ClassDomestic, models.TierStandard, usRecipient()
			}),
		},
		{
			name: "valid international wire",
			intent: with(func(i *Intent) {
				i.Class, i.Tier = models.ClassInternational, models.TierExpress
				i.Recipient = Recipient{Name: "Max Muster", IBAN: "DE89 3704 0044 0532 0130 00", BIC: "deutdeff", Country: "de"}
			}),
		},
		{
			name: "valid internal move",
			intent: with(func(i *Intent) {
				i.Class, i.Tier, i.Recipient = models.ClassInternal, models.TierInstant, Recipient{AccountID: mine}
			}),
		},
		{
			name: "internal move to itself",
			intent: with(func(i *Intent) {
				i.Class, i.Tier, i.Recipient = models.ClassInternal, models.TierInstant, Recipient{AccountID: a}
			}),
			wantField: "recipient",
		},
		{
			name: "internal move to another owner",
			intent: with(func(i *Intent) {
				i.Class, i.Tier, i.Recipient = models.ClassInternal, models.TierInstant, Recipient{AccountID: other}
			}),
			wantField: "recipient.account_id",
		},
		{
			name: "internal moves are instant only",
			intent: with(func(i *Intent) {
				i.Class, i.Tier, i.Recipient = models.ClassInternal, models.TierStandard, Recipient{AccountID: mine}
			}),
			wantField: "tier",
		},
		{
			name: "international needs a BIC",
			intent: with(func(i *Intent) {
				i.Class, i.Tier = models.ClassInternational, models.TierStandard
				i.Recipient = Recipient{Name: "Max Muster", IBAN: "DE89370400440532013000", Country: "DE"}
			}),
			wantField: "recipient.bic",
		},
		{
			name: "IBAN checksum",
			intent: with(func(i *Intent) {
				i.Class, i.Tier = models.ClassInternational, models.TierStandard
				i.Recipient = Recipient{Name: "Max Muster", IBAN: "DE89370400440532013001", BIC: "DEUTDEFF", Country: "DE"}
			}),
			wantField: "recipient.iban",
		},
		{
			name: "IBAN from another country",
			intent: with(func(i *Intent) {
				i.Class, i.Tier = models.ClassInternational, models.TierStandard
				i.Recipient = Recipient{Name: "Max Muster", IBAN: "DE89370400440532013000", BIC: "DEUTDEFF", Country: "FR"}
			}),
			wantField: "recipient.iban",
		},
		{
			name: "domestic wire abroad",
			intent: with(func(i *Intent) {
				i.Class, i.Tier = models.ClassDomestic, models.TierStandard
				i.Recipient = Recipient{Name: "Max Muster", AccountNumber: "12345678", Country: "MX"}
			}),
			wantField: "recipient.country",
		},
		{
			name: "international wire at home",
			intent: with(func(i *Intent) {
				i.Class, i.Tier, i.Recipient = models.ClassInternational, models.TierStandard, usRecipient()
				i.Recipient.BIC = "CHASUS33"
			}),
			wantField: "recipient.country",
		},
		{
			name: "domestic limit",
			intent: with(func(i *Intent) {
				i.Class, i.Tier, i.Recipient = models.ClassDomestic, models.TierStandard, usRecipient()
				i.Amount = 25_000_001
			}),
			wantField: "amount",
		},
		{
			name: "foreign account",
			intent: with(func(i *Intent) {
				i.Class, i.Tier, i.Recipient = models.ClassDomestic, models.TierStandard, usRecipient()
				i.OwnerID = "owner-b"
			}),
			wantField: "sender_account_id",
		},
		{
			name: "frozen sender",
			intent: with(func(i *Intent) {
				i.Class, i.Tier, i.Recipient = models.ClassDomestic, models.TierStandard, usRecipient()
				i.SenderAccountID = frozen
			}),
			wantField: "sender_account_id",
		},
		{
			name: "fee account cannot send",
			intent: with(func(i *Intent) {
				i.Class, i.Tier, i.Recipient = models.ClassDomestic, models.TierStandard, usRecipient()
				i.SenderAccountID, i.OwnerID = f.feeAcct, "bank"
			}),
			wantField: "sender_account_id",
		},
		{
			name: "currency must match the account",
			intent: with(func(i *Intent) {
				i.Class, i.Tier, i.Recipient = models.ClassDomestic, models.TierStandard, usRecipient()
				i.Currency = "EUR"
			}),
			wantField: "currency",
		},
		{
			name: "unknown class",
			intent: with(func(i *Intent) {
				i.Class, i.Tier = "crypto", models.TierStandard
			}),
			wantField: "class",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.ValidateTransfer(ctx, tt.intent)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			found := false
			for _, v := range verr.Violations {
				if v.Field == tt.wantField {
					found = true
				}
			}
			assert.True(t, found, "expected violation on %s, got %v", tt.wantField, verr.Violations)
		})
	}
}

func TestTransferService_Challenge(t *testing.T) {
	ctx := context.Background()
	verifier := new(MockVerifier)
	f := newFixture(t, deps{verifier: verifier})
	a := f.open(t, "owner-a", "USD", 2000000)
	b := f.open(t, "owner-b", "USD", 0)

	intent := Intent{
		OwnerID: "owner-a", SenderAccountID: a, Class: models.ClassDomestic, Tier: models.TierExpress,
		Amount: 600000, Currency: "USD", Recipient: onUs("B", b),
	}

	t.Run("missing code", func(t *testing.T) {
		_, err := f.svc.SettleTransfer(ctx, intent, nil, "")
		assert.ErrorIs(t, err, ErrChallengeRequired)
		assert.Equal(t, Terminal, Classify(err))
	})

	t.Run("wrong code", func(t *testing.T) {
		verifier.On("CheckChallenge", mock.Anything, "owner-a", models.PurposeTransfer, "000000").
			Return(false, &domainerrors.DomainError{Code: "CHALLENGE_INVALID", Message: "invalid code"}).Once()
		_, err := f.svc.SettleTransfer(ctx, intent, nil, "000000")
		assert.Equal(t, "CHALLENGE_INVALID", domainerrors.Code(err))
	})

	assert.Equal(t, models.Amount(2000000), f.balance(t, a, models.CategoryChecking).Balance)

	t.Run("verified code", func(t *testing.T) {
		verifier.On("CheckChallenge", mock.Anything, "owner-a", models.PurposeTransfer, "123456").Return(true, nil).Once()
		res, err := f.svc.SettleTransfer(ctx, intent, nil, "123456")
		require.NoError(t, err)
		assert.Equal(t, models.Amount(2000000-600000-4500), res.NewBalance)
	})

	t.Run("small transfers skip the challenge", func(t *testing.T) {
		small := intent
		small.Amount = 1000
		_, err := f.svc.SettleTransfer(ctx, small, nil, "")
		assert.NoError(t, err)
	})

	t.Run("recurring runs skip the challenge", func(t *testing.T) {
		auto := intent
		auto.Origin = models.OriginRecurring
		_, err := f.svc.SettleTransfer(ctx, auto, nil, "")
		assert.NoError(t, err)
	})

	verifier.AssertExpectations(t)
}

func TestTransferService_StandardTierHoldsFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, deps{})
	a := f.open(t, "owner-a", "USD", 100000)

	intent := Intent{
		OwnerID: "owner-a", SenderAccountID: a, Class: models.ClassDomestic, Tier: models.TierStandard,
		Amount: 20000, Currency: "USD", Recipient: usRecipient(),
	}
	res, err := f.svc.SettleTransfer(ctx, intent, nil, "")
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusPending, res.Status)
	assert.Equal(t, models.Amount(100000), res.NewBalance)
	assert.Equal(t, models.Amount(77500), res.Available)
	for _, e := range res.Entries {
		assert.Equal(t, models.EntryStatusPending, e.Status)
		assert.Equal(t, models.Amount(100000), e.BalanceAfter)
		assert.Equal(t, "********6789", e.Metadata.String("recipient_account"))
	}

	_, _, err = f.ledger.ApplyLedgerChange(ctx, a, models.CategoryChecking, -80000, ledger.EntryTemplate{Kind: models.KindWithdrawal})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds, "held funds are not spendable")

	posted, err := f.svc.ConfirmPending(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusCompleted, posted.Status)
	assert.Equal(t, models.Amount(77500), posted.NewBalance)
	assert.Equal(t, models.Amount(77500), posted.Available)
	assert.Equal(t, models.Amount(2500), f.balance(t, f.feeAcct, models.CategoryChecking).Balance)

	_, err = f.svc.ConfirmPending(ctx, res.Reference)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.svc.CancelPending(ctx, res.Reference, "too late")
	assert.ErrorIs(t, err, ErrInvalidState)

	f.assertConsistent(t, a, f.feeAcct)
}

func TestTransferService_CancelPendingReleasesFunds(t *testing.T) {
	ctx := context.Background()
	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, "owner-a", models.PurposeTransfer, mock.Anything).Return(nil)
	f := newFixture(t, deps{notifier: notifier})
	a := f.open(t, "owner-a", "USD", 100000)

	res, err := f.svc.SettleTransfer(ctx, Intent{
		OwnerID: "owner-a", SenderAccountID: a, Class: models.ClassDomestic, Tier: models.TierStandard,
		Amount: 20000, Currency: "USD", Recipient: usRecipient(), IdempotencyKey: "k-1",
	}, nil, "")
	require.NoError(t, err)

	cancelled, err := f.svc.CancelPending(ctx, res.Reference, "beneficiary bank rejected")
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusFailed, cancelled.Status)
	assert.Equal(t, models.TransferFailed, cancelled.State)
	assert.Equal(t, models.Amount(100000), cancelled.Available)
	assert.Equal(t, models.Amount(0), f.balance(t, f.feeAcct, models.CategoryChecking).Balance)

	t.Run("replay reports the final state", func(t *testing.T) {
		again, err := f.svc.SettleTransfer(ctx, Intent{
			OwnerID: "owner-a", SenderAccountID: a, Class: models.ClassDomestic, Tier: models.TierStandard,
			Amount: 20000, Currency: "USD", Recipient: usRecipient(), IdempotencyKey: "k-1",
		}, nil, "")
		require.NoError(t, err)
		assert.True(t, again.Replayed)
		assert.Equal(t, models.TransferFailed, again.State)
	})

	_, err = f.svc.CancelPending(ctx, "TRF-UNKNOWN", "")
	assert.ErrorIs(t, err, ledger.ErrHoldNotFound)

	notifier.AssertNumberOfCalls(t, "Notify", 2)
	f.assertConsistent(t, a)
}

func TestTransferService_NotifierFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, "owner-a", models.PurposeTransfer, mock.MatchedBy(func(n models.Notification) bool {
		return n.Status == models.EntryStatusCompleted && n.Amount == 20000 && n.Fee == 4500
	})).Return(errors.New("broker down")).Once()
	f := newFixture(t, deps{notifier: notifier})
	a := f.open(t, "owner-a", "USD", 100000)
	b := f.open(t, "owner-b", "USD", 0)

	res, err := f.svc.SettleTransfer(ctx, Intent{
		OwnerID: "owner-a", SenderAccountID: a, Class: models.ClassDomestic, Tier: models.TierExpress,
		Amount: 20000, Currency: "USD", Recipient: onUs("B", b),
	}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "755.00", res.NewBalance.String())
	notifier.AssertExpectations(t)
}

func TestTransferService_RetriesAbortedSettlement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, deps{})
	a := f.open(t, "owner-a", "USD", 100000)
	b := f.open(t, "owner-b", "USD", 0)

	intent := Intent{
		OwnerID: "owner-a", SenderAccountID: a, Class: models.ClassDomestic, Tier: models.TierExpress,
		Amount: 20000, Currency: "USD", Recipient: onUs("B", b),
	}

	t.Run("recovers after transient aborts", func(t *testing.T) {
		aborts := 2
		f.store.SetFault(func(op string) error {
			if op == "commit" && aborts > 0 {
				aborts--
				return ledger.ErrTransactionAborted
			}
			return nil
		})
		defer f.store.SetFault(nil)

		res, err := f.svc.SettleTransfer(ctx, intent, nil, "")
		require.NoError(t, err)
		assert.Equal(t, "755.00", res.NewBalance.String())
		require.Len(t, f.sleeps, 2)
		assert.GreaterOrEqual(t, f.sleeps[1], 20*time.Millisecond, "backoff grows")
	})

	t.Run("gives up with a terminal settlement failure", func(t *testing.T) {
		f.sleeps = nil
		f.store.SetFault(func(op string) error {
			if op == "commit" {
				return ledger.ErrTransactionAborted
			}
			return nil
		})
		defer f.store.SetFault(nil)

		_, err := f.svc.SettleTransfer(ctx, intent, nil, "")
		assert.ErrorIs(t, err, ErrSettlementFailed)
		assert.ErrorIs(t, err, ledger.ErrTransactionAborted)
		assert.Equal(t, Terminal, Classify(err))
		assert.Equal(t, "SETTLEMENT_FAILED", domainerrors.Code(err))
		assert.Len(t, f.sleeps, 3)
		assert.Equal(t, "755.00", f.balance(t, a, models.CategoryChecking).Balance.String(), "failed settle leaves the ledger untouched")
	})

	t.Run("insufficient funds is not retried", func(t *testing.T) {
		f.sleeps = nil
		big := intent
		big.Amount = 90000
		_, err := f.svc.SettleTransfer(ctx, big, nil, "")
		assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
		assert.Equal(t, Terminal, Classify(err))
		assert.Empty(t, f.sleeps)
	})

	f.assertConsistent(t, a, b)
}

func TestTransferService_ConcurrentDuplicateSettles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, deps{})
	a := f.open(t, "owner-a", "USD", 100000)
	b := f.open(t, "owner-b", "USD", 0)

	intent := Intent{
		OwnerID: "owner-a", SenderAccountID: a, Class: models.ClassDomestic, Tier: models.TierExpress,
		Amount: 20000, Currency: "USD", Recipient: onUs("B", b), IdempotencyKey: "double-click",
	}

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.SettleTransfer(ctx, intent, nil, "")
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Reference, results[i].Reference)
	}
	assert.Equal(t, "755.00", f.balance(t, a, models.CategoryChecking).Balance.String())
	assert.Equal(t, models.Amount(20000), f.balance(t, b, models.CategoryChecking).Balance)
	f.assertConsistent(t, a, b)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Classification
	}{
		{"nil", nil, Terminal},
		{"aborted", ledger.ErrTransactionAborted, Retryable},
		{"wrapped abort", errors.Join(errors.New("commit"), ledger.ErrTransactionAborted), Retryable},
		{"insufficient funds", ledger.ErrInsufficientFunds, Terminal},
		{"validation", invalid("amount", "must be positive"), Terminal},
		{"settlement failed", errors.Join(ErrSettlementFailed, ledger.ErrTransactionAborted), Terminal},
		{"plain", errors.New("boom"), Terminal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestReferences(t *testing.T) {
	ref, err := newReference(fixedNow)
	require.NoError(t, err)
	assert.Regexp(t, `^TRF-20260301080000-[A-Z2-7]{6}$`, ref)

	assert.Equal(t, keyedReference("acct", "key"), keyedReference("acct", "key"))
	assert.NotEqual(t, keyedReference("acct", "key"), keyedReference("other", "key"))
	assert.LessOrEqual(t, len(FeeReference(keyedReference("acct", "key"))), 64)
}
