package ledger

import (
	"time"

	"bankcore/internal/models"
)

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordOperationDuration(string, time.Duration) {}
func (n *NoopMetricsCollector) RecordOperationResult(string, string)          {}
func (n *NoopMetricsCollector) RecordEntry(models.EntryKind, models.Amount)   {}
func (n *NoopMetricsCollector) RecordError(string, string)                    {}
