package transfer

import (
	"context"
	"fmt"

	"bankcore/internal/models"

	"github.com/shopspring/decimal"
)

// PriceTransfer quotes the fee and, for cross-currency transfers, the
// converted amount at the mid rate less the configured spread.
func (s *service) PriceTransfer(ctx context.Context, intent Intent) (*Pricing, error) {
	intent = normalize(intent)

	fee, ok := s.config.Fees[intent.Class][intent.Tier]
	if !ok {
		return nil, invalid("tier", fmt.Sprintf("%s is not offered for %s transfers", intent.Tier, intent.Class))
	}
	if intent.Amount <= 0 {
		return nil, invalid("amount", "must be positive")
	}

	var surcharge models.Amount
	if intent.Class == models.ClassInternational && s.highCost[intent.Recipient.Country] {
		surcharge = s.config.HighCostSurcharge
	}
	fee += surcharge

	target := intent.targetCurrency()
	p := &Pricing{
		Amount:          intent.Amount,
		Fee:             fee,
		Surcharge:       surcharge,
		TotalDebit:      intent.Amount + fee,
		ConvertedAmount: intent.Amount,
		ExchangeRate:    decimal.NewFromInt(1),
		RateAsOf:        s.now().UTC(),
		Currency:        intent.Currency,
		TargetCurrency:  target,
	}
	if target == intent.Currency {
		return p, nil
	}

	if s.rates == nil {
		return nil, fmt.Errorf("%w: no rate source for %s/%s", ErrRateUnavailable, intent.Currency, target)
	}
	mid, asOf, err := s.rates.GetRate(ctx, intent.Currency, target)
	if err != nil {
		return nil, fmt.Errorf("price %s/%s: %w", intent.Currency, target, err)
	}

	p.ExchangeRate = applySpread(mid, s.config.SpreadBps)
	p.ConvertedAmount = models.AmountFromDecimal(intent.Amount.Decimal().Mul(p.ExchangeRate))
	p.RateAsOf = asOf
	if p.ConvertedAmount <= 0 {
		return nil, invalid("amount", "too small to convert to "+target)
	}
	return p, nil
}

// applySpread returns rate * (1 - bps/10000) without leaving fixed point.
func applySpread(rate decimal.Decimal, bps int64) decimal.Decimal {
	if bps == 0 {
		return rate
	}
	return rate.Mul(decimal.New(10000-bps, -4))
}

// matchQuote rejects a caller-held quote that no longer describes the
// transfer about to be settled.
func matchQuote(quoted, current *Pricing) error {
	switch {
	case quoted.Amount != current.Amount,
		quoted.Currency != current.Currency,
		quoted.TargetCurrency != current.TargetCurrency:
		return invalid("pricing", "quote does not match the transfer")
	case quoted.Fee != current.Fee,
		quoted.TotalDebit != current.TotalDebit,
		quoted.ConvertedAmount != current.ConvertedAmount:
		return invalid("pricing", "quote is stale, request a new one")
	}
	return nil
}
