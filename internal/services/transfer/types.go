package transfer

import (
	"time"

	"bankcore/internal/models"

	"github.com/shopspring/decimal"
)

// Recipient identifies where the money goes. On-us recipients set AccountID;
// external recipients carry bank details for their country.
type Recipient struct {
	Name          string          `json:"name"`
	AccountID     string          `json:"account_id,omitempty"`
	Category      models.Category `json:"category,omitempty"`
	AccountNumber string          `json:"account_number,omitempty"`
	RoutingNumber string          `json:"routing_number,omitempty"`
	IBAN          string          `json:"iban,omitempty"`
	BIC           string          `json:"bic,omitempty"`
	BankName      string          `json:"bank_name,omitempty"`
	Country       string          `json:"country,omitempty"`
}

// OnUs reports whether the recipient holds an account in this ledger.
func (r Recipient) OnUs() bool { return r.AccountID != "" }

// Intent is a transfer as requested by the caller.
type Intent struct {
	OwnerID         string                `json:"owner_id"`
	SenderAccountID string                `json:"sender_account_id"`
	SenderCategory  models.Category       `json:"sender_category"`
	Class           models.TransferClass  `json:"class"`
	Tier            models.TransferTier   `json:"tier"`
	Amount          models.Amount         `json:"amount"`
	Currency        string                `json:"currency"`
	TargetCurrency  string                `json:"target_currency,omitempty"`
	Recipient       Recipient             `json:"recipient"`
	Description     string                `json:"description,omitempty"`
	IdempotencyKey  string                `json:"-"`
	Origin          models.TransferOrigin `json:"-"`
}

// targetCurrency defaults to the sending currency.
func (i Intent) targetCurrency() string {
	if i.TargetCurrency == "" {
		return i.Currency
	}
	return i.TargetCurrency
}

// Pricing is the quoted cost of an intent. Amount and Fee are in the sending
// currency; ConvertedAmount is what the recipient receives in TargetCurrency.
type Pricing struct {
	Amount          models.Amount   `json:"amount"`
	Fee             models.Amount   `json:"fee"`
	Surcharge       models.Amount   `json:"surcharge,omitempty"`
	TotalDebit      models.Amount   `json:"total_debit"`
	ConvertedAmount models.Amount   `json:"converted_amount"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate"`
	RateAsOf        time.Time       `json:"rate_as_of"`
	Currency        string          `json:"currency"`
	TargetCurrency  string          `json:"target_currency"`
}

// Result is the outcome of a settled, confirmed or cancelled transfer.
type Result struct {
	Reference    string               `json:"reference"`
	FeeReference string               `json:"fee_reference,omitempty"`
	Status       string               `json:"status"`
	State        models.TransferState `json:"state"`
	NewBalance   models.Amount        `json:"new_balance"`
	Available    models.Amount        `json:"available"`
	Pricing      *Pricing             `json:"pricing,omitempty"`
	Entries      []models.LedgerEntry `json:"entries"`
	Replayed     bool                 `json:"replayed,omitempty"`
}

// RunReport summarizes one pass over due standing orders.
type RunReport struct {
	Due       int `json:"due"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Deferred  int `json:"deferred"`
}

// FeeSchedule is the flat fee per class and tier, in minor units.
type FeeSchedule map[models.TransferClass]map[models.TransferTier]models.Amount

// DefaultFees is the published fee table. A tier missing from a class is not
// offered for that class.
func DefaultFees() FeeSchedule {
	return FeeSchedule{
		models.ClassInternal: {
			models.TierInstant: 0,
		},
		models.ClassDomestic: {
			models.TierStandard: 2500,
			models.TierExpress:  4500,
			models.TierInstant:  6000,
		},
		models.ClassInternational: {
			models.TierStandard: 3500,
			models.TierExpress:  6500,
		},
	}
}

// Config holds configuration for the transfer orchestrator
type Config struct {
	Fees               FeeSchedule
	HighCostSurcharge  models.Amount
	HighCostCountries  []string
	SpreadBps          int64
	ChallengeThreshold models.Amount
	HomeCountry        string
	FeeAccountID       string
	FeeIncomeKind      models.EntryKind
	MaxRetries         int
	RetryBaseDelay     time.Duration
	RecurringBatch     int
}

// Classification is the retry disposition of a settlement error.
type Classification string

const (
	Retryable Classification = "retryable"
	Terminal  Classification = "terminal"
)
