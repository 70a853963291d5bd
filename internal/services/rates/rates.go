// Package rates supplies exchange rates for cross-currency transfers.
package rates

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	domainerrors "bankcore/internal/errors"

	"github.com/shopspring/decimal"
)

// ErrRateUnavailable is returned when no rate is known for a pair.
var ErrRateUnavailable = domainerrors.ErrRateUnavailable

// ratePrecision is the number of decimal places kept for derived rates.
const ratePrecision = 10

// Source returns the mid-market rate converting one unit of from into to.
type Source interface {
	GetRate(ctx context.Context, from, to string) (decimal.Decimal, time.Time, error)
}

// StaticSource serves rates from a fixed table quoted against a base
// currency. Inverse and cross rates are derived through the base.
type StaticSource struct {
	mu    sync.RWMutex
	base  string
	rates map[string]decimal.Decimal
	asOf  time.Time
}

// NewStaticSource creates a source from a table of "units of currency per one
// unit of base".
func NewStaticSource(base string, table map[string]decimal.Decimal) *StaticSource {
	s := &StaticSource{}
	s.Update(base, table)
	return s
}

// Update replaces the table.
func (s *StaticSource) Update(base string, table map[string]decimal.Decimal) {
	base = strings.ToUpper(base)
	rates := make(map[string]decimal.Decimal, len(table)+1)
	for k, v := range table {
		rates[strings.ToUpper(k)] = v
	}
	rates[base] = decimal.NewFromInt(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = base
	s.rates = rates
	s.asOf = time.Now().UTC()
}

func (s *StaticSource) GetRate(ctx context.Context, from, to string) (decimal.Decimal, time.Time, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if from == to {
		return decimal.NewFromInt(1), s.asOf, nil
	}
	fromRate, ok := s.rates[from]
	if !ok || !fromRate.IsPositive() {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: %s/%s", ErrRateUnavailable, from, to)
	}
	toRate, ok := s.rates[to]
	if !ok || !toRate.IsPositive() {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: %s/%s", ErrRateUnavailable, from, to)
	}
	return toRate.DivRound(fromRate, ratePrecision), s.asOf, nil
}

// ParseTable reads "EUR=0.92,GBP=0.79" into a rate table.
func ParseTable(raw string) (map[string]decimal.Decimal, error) {
	table := make(map[string]decimal.Decimal)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid rate %q: expected CODE=RATE", part)
		}
		code = strings.ToUpper(strings.TrimSpace(code))
		if len(code) != 3 {
			return nil, fmt.Errorf("invalid currency code %q", code)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", code, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate for %s must be positive", code)
		}
		table[code] = rate
	}
	return table, nil
}
