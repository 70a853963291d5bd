package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"bankcore/internal/config"
	"bankcore/internal/services/transfer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) Sweep(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) RunRecurring(ctx context.Context, now time.Time) (*transfer.RunReport, error) {
	args := m.Called(ctx, now)
	report, _ := args.Get(0).(*transfer.RunReport)
	return report, args.Error(1)
}

func TestJobs_SweepChallenges(t *testing.T) {
	sweeper := new(MockSweeper)
	sweeper.On("Sweep", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	})).Return(3, nil).Once()
	sweeper.On("Sweep", mock.Anything).Return(0, errors.New("redis down")).Once()

	jobs := NewJobs(sweeper, nil, time.Second)
	jobs.SweepChallenges()
	jobs.SweepChallenges()
	jobs.RunRecurring()

	sweeper.AssertNumberOfCalls(t, "Sweep", 2)
}

func TestJobs_RunRecurringUsesCurrentTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	runner := new(MockRunner)
	runner.On("RunRecurring", mock.Anything, now).Return(&transfer.RunReport{Due: 2, Completed: 1, Deferred: 1}, nil).Once()
	runner.On("RunRecurring", mock.Anything, now).Return(nil, errors.New("db down")).Once()

	jobs := NewJobs(nil, runner, 0)
	jobs.now = func() time.Time { return now }
	jobs.RunRecurring()
	jobs.RunRecurring()
	jobs.SweepChallenges()

	runner.AssertExpectations(t)
}

func TestScheduler_StartAndStop(t *testing.T) {
	s := NewScheduler(NewJobs(nil, nil, 0), config.JobsConfig{
		SweepSchedule:     "@every 1h",
		RecurringSchedule: "*/5 * * * *",
	})
	require.NoError(t, s.Start())
	assert.Equal(t, 2, s.Entries())

	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_RejectsBadSchedule(t *testing.T) {
	s := NewScheduler(NewJobs(nil, nil, 0), config.JobsConfig{
		SweepSchedule:     "@every 1m",
		RecurringSchedule: "whenever",
	})
	err := s.Start()
	assert.ErrorContains(t, err, "recurring transfer job")
}
