package scheduler

import (
	"context"
	"fmt"
	"log"

	"bankcore/internal/config"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	config config.JobsConfig
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, cfg config.JobsConfig) *Scheduler {
	cronLogger := cron.PrintfLogger(log.Default())
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler. A schedule that does
// not parse is reported before anything runs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.config.SweepSchedule, s.jobs.SweepChallenges); err != nil {
		return fmt.Errorf("schedule otp sweep job: %w", err)
	}
	log.Printf("Scheduled otp sweep job: %s", s.config.SweepSchedule)

	if _, err := s.cron.AddFunc(s.config.RecurringSchedule, s.jobs.RunRecurring); err != nil {
		return fmt.Errorf("schedule recurring transfer job: %w", err)
	}
	log.Printf("Scheduled recurring transfer job: %s", s.config.RecurringSchedule)

	s.cron.Start()
	return nil
}

// Stop gracefully stops the cron scheduler. The returned context is done once
// running jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
