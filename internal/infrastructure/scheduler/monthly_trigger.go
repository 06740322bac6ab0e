package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TriggerScheduler is the name jobs queued by the monthly trigger carry
const TriggerScheduler = "scheduler"

// MonthlyTriggerConfig holds configuration for the monthly trigger
type MonthlyTriggerConfig struct {
	// DayOfMonth, Hour and Minute pick the wall-clock minute to fire at.
	// DayOfMonth is capped at 28 so every month has it.
	DayOfMonth int
	Hour       int
	Minute     int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration
	Location      *time.Location
}

// DefaultMonthlyTriggerConfig fires at 02:00 on the first of the month
func DefaultMonthlyTriggerConfig() MonthlyTriggerConfig {
	return MonthlyTriggerConfig{
		DayOfMonth:    1,
		Hour:          2,
		Minute:        0,
		CheckInterval: time.Minute,
		Location:      time.UTC,
	}
}

// Validate checks the trigger time
func (c MonthlyTriggerConfig) Validate() error {
	if c.DayOfMonth < 1 || c.DayOfMonth > 28 {
		return fmt.Errorf("%w: day_of_month must be between 1 and 28", ErrInvalidConfig)
	}
	if c.Hour < 0 || c.Hour > 23 {
		return fmt.Errorf("%w: hour must be between 0 and 23", ErrInvalidConfig)
	}
	if c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("%w: minute must be between 0 and 59", ErrInvalidConfig)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check_interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// MonthlyTrigger queues one commission run per month on the scheduler
type MonthlyTrigger struct {
	config    MonthlyTriggerConfig
	scheduler *Scheduler
	logger    *zap.Logger
	clock     func() time.Time

	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.Mutex
	isRunning    bool
	lastRunMonth string
}

// NewMonthlyTrigger creates a new monthly trigger
func NewMonthlyTrigger(config MonthlyTriggerConfig, scheduler *Scheduler, logger *zap.Logger) *MonthlyTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &MonthlyTrigger{
		config:    config,
		scheduler: scheduler,
		logger:    logger,
		clock:     time.Now,
	}
}

// Start starts the check loop
func (m *MonthlyTrigger) Start(ctx context.Context) error {
	if err := m.config.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = true
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.runLoop(ctx)

	m.logger.Info("Monthly commission trigger started",
		zap.Int("day_of_month", m.config.DayOfMonth),
		zap.Int("hour", m.config.Hour),
		zap.Int("minute", m.config.Minute),
		zap.Duration("check_interval", m.config.CheckInterval),
		zap.Time("next_run_at", m.NextRunAt(m.clock())),
	)

	return nil
}

// Stop stops the check loop
func (m *MonthlyTrigger) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = false
	m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Monthly commission trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MonthlyTrigger) runLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkAndTrigger(m.clock())
		}
	}
}

// shouldRun reports whether now falls on the configured minute
func (m *MonthlyTrigger) shouldRun(now time.Time) bool {
	now = now.In(m.config.Location)
	return now.Day() == m.config.DayOfMonth &&
		now.Hour() == m.config.Hour &&
		now.Minute() == m.config.Minute
}

// checkAndTrigger queues a run at most once per calendar month
func (m *MonthlyTrigger) checkAndTrigger(now time.Time) bool {
	if !m.shouldRun(now) {
		return false
	}
	month := now.In(m.config.Location).Format("2006-01")

	m.mu.Lock()
	if m.lastRunMonth == month {
		m.mu.Unlock()
		return false
	}
	m.lastRunMonth = month
	m.mu.Unlock()

	job, err := m.scheduler.ScheduleRun(now, TriggerScheduler)
	if err != nil {
		m.logger.Error("Failed to queue monthly commission run", zap.String("month", month), zap.Error(err))
		m.mu.Lock()
		m.lastRunMonth = ""
		m.mu.Unlock()
		return false
	}
	m.logger.Info("Monthly commission run queued",
		zap.String("month", month),
		zap.String("job_id", job.ID.String()),
	)
	return true
}

// NextRunAt returns the next firing time strictly after now
func (m *MonthlyTrigger) NextRunAt(now time.Time) time.Time {
	now = now.In(m.config.Location)
	next := time.Date(now.Year(), now.Month(), m.config.DayOfMonth, m.config.Hour, m.config.Minute, 0, 0, m.config.Location)
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month()+1, m.config.DayOfMonth, m.config.Hour, m.config.Minute, 0, 0, m.config.Location)
	}
	return next
}

// TriggerNow queues a run immediately, outside the monthly cadence
func (m *MonthlyTrigger) TriggerNow(trigger string) (*Job, error) {
	return m.scheduler.ScheduleRun(m.clock(), trigger)
}
