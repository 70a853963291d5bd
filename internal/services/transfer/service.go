package transfer

import (
	"context"
	"log"
	"strings"
	"time"

	"bankcore/internal/models"
	"bankcore/internal/repositories"
	"bankcore/internal/services/ledger"
	"bankcore/internal/services/rates"
)

type service struct {
	ledger    ledger.Service
	rates     rates.Source
	verifier  Verifier
	notifier  Notifier
	recurring repositories.RecurringRepository
	config    Config
	metrics   MetricsCollector

	highCost map[string]bool
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option customizes the orchestrator.
type Option func(*service)

// WithClock overrides the time source used for references and schedules.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithSleeper overrides the wait between settle attempts.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *service) { s.sleep = sleep }
}

// NewService creates a new transfer orchestrator
func NewService(
	ledgerService ledger.Service,
	rateSource rates.Source,
	verifier Verifier,
	notifier Notifier,
	recurring repositories.RecurringRepository,
	config Config,
	metrics MetricsCollector,
	opts ...Option,
) Service {
	if ledgerService == nil {
		panic("ledger service is required")
	}

	if config.Fees == nil {
		config.Fees = DefaultFees()
	}
	if config.HomeCountry == "" {
		config.HomeCountry = "US"
	}
	if config.FeeIncomeKind == "" {
		config.FeeIncomeKind = models.KindAdjustmentCredit
	}
	if !config.FeeIncomeKind.IsCredit() {
		panic("fee income kind must be a credit kind")
	}
	if config.SpreadBps < 0 || config.SpreadBps >= 10000 {
		panic("spread must be between 0 and 9999 basis points")
	}
	if config.ChallengeThreshold <= 0 {
		config.ChallengeThreshold = 1_000_000
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = 50 * time.Millisecond
	}
	if config.RecurringBatch <= 0 {
		config.RecurringBatch = 100
	}

	// Verifier, notifier and metrics are optional
	if verifier == nil {
		log.Println("⚠️ No verifier configured, transfer challenges are disabled")
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}

	highCost := make(map[string]bool, len(config.HighCostCountries))
	for _, c := range config.HighCostCountries {
		highCost[strings.ToUpper(strings.TrimSpace(c))] = true
	}

	s := &service{
		ledger:    ledgerService,
		rates:     rateSource,
		verifier:  verifier,
		notifier:  notifier,
		recurring: recurring,
		config:    config,
		metrics:   metrics,
		highCost:  highCost,
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, models.Purpose, models.Notification) error {
	return nil
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordTransfer(models.TransferClass, models.TransferTier, string) {}
func (n *NoopMetricsCollector) RecordSettleAttempt(string)                                      {}
func (n *NoopMetricsCollector) RecordFee(models.TransferClass, models.Amount)                   {}
