package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// funcExecutor adapts a function to JobExecutor
type funcExecutor func(ctx context.Context, job *Job) error

func (f funcExecutor) Execute(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

func testSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:           true,
		MaxConcurrentJobs: 1,
		JobTimeout:        time.Second,
		RetryAttempts:     2,
		RetryDelay:        time.Millisecond,
		QueueSize:         4,
	}
}

func startScheduler(t *testing.T, cfg SchedulerConfig, exec JobExecutor) *Scheduler {
	t.Helper()
	s := NewScheduler(cfg, exec, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func TestJob_Lifecycle(t *testing.T) {
	at := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	job := NewJob(at, "scheduler", 1)

	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, at, job.ScheduledFor)

	job.Start()
	assert.Equal(t, JobStatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)

	job.Fail("boom")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "boom", job.Error)
	assert.True(t, job.ShouldRetry())

	job.ScheduleRetry(time.Minute)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Empty(t, job.Error)
	require.NotNil(t, job.NextRetryAt)

	job.Start()
	job.Fail("boom again")
	assert.False(t, job.ShouldRetry())

	job.Complete()
	assert.Equal(t, JobStatusSuccess, job.Status)
	assert.NotNil(t, job.CompletedAt)
}

func TestSchedulerConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultSchedulerConfig().Validate())

	cfg := DefaultSchedulerConfig()
	cfg.MaxConcurrentJobs = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultSchedulerConfig()
	cfg.JobTimeout = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultSchedulerConfig()
	cfg.RetryAttempts = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestScheduler_SubmitJob_NotRunning(t *testing.T) {
	s := NewScheduler(testSchedulerConfig(), funcExecutor(func(context.Context, *Job) error { return nil }), nil)

	_, err := s.ScheduleRun(time.Now(), "http")
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
	assert.False(t, s.IsRunning())
}

func TestScheduler_ExecutesJobs(t *testing.T) {
	executed := make(chan *Job, 1)
	s := startScheduler(t, testSchedulerConfig(), funcExecutor(func(ctx context.Context, job *Job) error {
		executed <- job
		return nil
	}))

	at := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	job, err := s.ScheduleRun(at, TriggerScheduler)
	require.NoError(t, err)

	select {
	case got := <-executed:
		assert.Equal(t, job.ID, got.ID)
		assert.Equal(t, at, got.ScheduledFor)
		assert.Equal(t, TriggerScheduler, got.Trigger)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not executed")
	}
}

func TestScheduler_RetriesFailedJobs(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts int
	)
	succeeded := make(chan struct{})
	s := startScheduler(t, testSchedulerConfig(), funcExecutor(func(ctx context.Context, job *Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("database unavailable")
		}
		close(succeeded)
		return nil
	}))

	_, err := s.ScheduleRun(time.Now(), TriggerScheduler)
	require.NoError(t, err)

	select {
	case <-succeeded:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not succeed after retries")
	}
	mu.Lock()
	assert.Equal(t, 3, attempts)
	mu.Unlock()
}

func TestScheduler_RecoversFromPanics(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	done := make(chan struct{})
	cfg := testSchedulerConfig()
	cfg.RetryAttempts = 0
	s := startScheduler(t, cfg, funcExecutor(func(ctx context.Context, job *Job) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			panic("nil map")
		}
		close(done)
		return nil
	}))

	_, err := s.ScheduleRun(time.Now(), "first")
	require.NoError(t, err)
	_, err = s.ScheduleRun(time.Now(), "second")
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
}

func TestScheduler_QueueFull(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	cfg := testSchedulerConfig()
	cfg.QueueSize = 1
	s := startScheduler(t, cfg, funcExecutor(func(ctx context.Context, job *Job) error {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}))
	defer close(release)

	_, err := s.ScheduleRun(time.Now(), "first")
	require.NoError(t, err)
	<-started

	_, err = s.ScheduleRun(time.Now(), "second")
	require.NoError(t, err)

	_, err = s.ScheduleRun(time.Now(), "third")
	assert.ErrorIs(t, err, ErrJobQueueFull)
}

func TestScheduler_StartRejectsInvalidConfig(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.MaxConcurrentJobs = 0
	s := NewScheduler(cfg, funcExecutor(func(context.Context, *Job) error { return nil }), nil)

	assert.ErrorIs(t, s.Start(context.Background()), ErrInvalidConfig)
	assert.False(t, s.IsRunning())
}
