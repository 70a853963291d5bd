// Package metrics exports service counters and latencies to Prometheus.
package metrics

import (
	"time"

	"bankcore/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bankcore"

// Collector implements the ledger, verification and transfer metrics
// interfaces on top of a single registry.
type Collector struct {
	registry *prometheus.Registry

	ledgerDuration *prometheus.HistogramVec
	ledgerResults  *prometheus.CounterVec
	ledgerEntries  *prometheus.CounterVec
	ledgerVolume   *prometheus.CounterVec
	ledgerErrors   *prometheus.CounterVec

	challengesIssued *prometheus.CounterVec
	challengeChecks  *prometheus.CounterVec
	subjectsBlocked  prometheus.Counter
	challengesSwept  prometheus.Counter

	transfers      *prometheus.CounterVec
	settleAttempts *prometheus.CounterVec
	feesCollected  *prometheus.CounterVec
}

// New registers every metric on a fresh registry. Process and Go runtime
// collectors are included so the registry can back /metrics on its own.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		ledgerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Latency of ledger operations.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		ledgerResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by outcome.",
		}, []string{"operation", "result"}),
		ledgerEntries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "entries_total",
			Help:      "Ledger entries written, by kind.",
		}, []string{"kind"}),
		ledgerVolume: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "entry_amount_minor_total",
			Help:      "Sum of entry amounts in minor units, by kind.",
		}, []string{"kind"}),
		ledgerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "errors_total",
			Help:      "Ledger errors by operation and code.",
		}, []string{"operation", "code"}),

		challengesIssued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "challenges_issued_total",
			Help:      "One-time codes issued, by purpose.",
		}, []string{"purpose"}),
		challengeChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "challenge_checks_total",
			Help:      "Code checks by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		subjectsBlocked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "subjects_blocked_total",
			Help:      "Subjects locked out after too many failed checks.",
		}),
		challengesSwept: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "challenges_swept_total",
			Help:      "Expired challenges removed by the sweeper.",
		}),

		transfers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "transfers_total",
			Help:      "Transfers by class, tier and resulting status.",
		}, []string{"class", "tier", "status"}),
		settleAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "settle_attempts_total",
			Help:      "Settlement attempts by outcome.",
		}, []string{"outcome"}),
		feesCollected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "fees_minor_total",
			Help:      "Fees charged in minor units, by class.",
		}, []string{"class"}),
	}
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ledger.MetricsCollector

func (c *Collector) RecordOperationDuration(operation string, d time.Duration) {
	c.ledgerDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (c *Collector) RecordOperationResult(operation, result string) {
	c.ledgerResults.WithLabelValues(operation, result).Inc()
}

func (c *Collector) RecordEntry(kind models.EntryKind, amount models.Amount) {
	c.ledgerEntries.WithLabelValues(string(kind)).Inc()
	if amount < 0 {
		amount = -amount
	}
	c.ledgerVolume.WithLabelValues(string(kind)).Add(float64(amount))
}

func (c *Collector) RecordError(operation, code string) {
	c.ledgerErrors.WithLabelValues(operation, code).Inc()
}

// verification.MetricsCollector

func (c *Collector) RecordChallengeIssued(purpose models.Purpose) {
	c.challengesIssued.WithLabelValues(string(purpose)).Inc()
}

func (c *Collector) RecordChallengeCheck(purpose models.Purpose, outcome string) {
	c.challengeChecks.WithLabelValues(string(purpose), outcome).Inc()
}

func (c *Collector) RecordSubjectBlocked() { c.subjectsBlocked.Inc() }

func (c *Collector) RecordSwept(count int) {
	if count > 0 {
		c.challengesSwept.Add(float64(count))
	}
}

// transfer.MetricsCollector

func (c *Collector) RecordTransfer(class models.TransferClass, tier models.TransferTier, status string) {
	c.transfers.WithLabelValues(string(class), string(tier), status).Inc()
}

func (c *Collector) RecordSettleAttempt(outcome string) {
	c.settleAttempts.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordFee(class models.TransferClass, fee models.Amount) {
	if fee > 0 {
		c.feesCollected.WithLabelValues(string(class)).Add(float64(fee))
	}
}
