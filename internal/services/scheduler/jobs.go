package scheduler

import (
	"context"
	"log"
	"time"

	"bankcore/internal/services/transfer"
)

// Sweeper removes expired verification state.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// RecurringRunner settles due standing orders.
type RecurringRunner interface {
	RunRecurring(ctx context.Context, now time.Time) (*transfer.RunReport, error)
}

// Jobs holds the background tasks run by the scheduler. Each run gets its own
// deadline so a stuck store cannot pile up runs.
type Jobs struct {
	sweeper   Sweeper
	recurring RecurringRunner
	timeout   time.Duration
	now       func() time.Time
}

// NewJobs creates the job set. Either dependency may be nil to disable its job.
func NewJobs(sweeper Sweeper, recurring RecurringRunner, timeout time.Duration) *Jobs {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Jobs{
		sweeper:   sweeper,
		recurring: recurring,
		timeout:   timeout,
		now:       time.Now,
	}
}

// SweepChallenges purges expired challenges and lapsed blocks.
func (j *Jobs) SweepChallenges() {
	if j.sweeper == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	removed, err := j.sweeper.Sweep(ctx)
	if err != nil {
		log.Printf("Failed to sweep expired challenges: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("Swept %d expired challenges", removed)
	}
}

// RunRecurring settles standing orders that are due now.
func (j *Jobs) RunRecurring() {
	if j.recurring == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	report, err := j.recurring.RunRecurring(ctx, j.now().UTC())
	if err != nil {
		log.Printf("Failed to run recurring transfers: %v", err)
		return
	}
	if report.Failed > 0 || report.Deferred > 0 {
		log.Printf("Recurring run: Due=%d, Failed=%d, Deferred=%d",
			report.Due, report.Failed, report.Deferred)
	}
}
