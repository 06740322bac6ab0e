package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSchedulerNotRunning = errors.New("commission scheduler is not running")

	// ErrJobQueueFull means QueueSize runs are already waiting
	ErrJobQueueFull = errors.New("commission run queue is full")

	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job is one queued commission run
type Job struct {
	ID uuid.UUID
	// ScheduledFor anchors period resolution for the run
	ScheduledFor time.Time
	Trigger      string
	Status       JobStatus
	Error        string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	RetryCount   int
	MaxRetries   int
	NextRetryAt  *time.Time
}

// NewJob creates a new job instance
func NewJob(scheduledFor time.Time, trigger string, maxRetries int) *Job {
	return &Job{
		ID:           uuid.New(),
		ScheduledFor: scheduledFor,
		Trigger:      trigger,
		Status:       JobStatusPending,
		MaxRetries:   maxRetries,
	}
}

func stamp() *time.Time {
	now := time.Now()
	return &now
}

// Start moves a pending run to RUNNING and clears the previous attempt's error
func (j *Job) Start() {
	j.Status, j.StartedAt, j.Error = JobStatusRunning, stamp(), ""
}

func (j *Job) Complete() {
	j.Status, j.CompletedAt = JobStatusSuccess, stamp()
}

func (j *Job) Fail(reason string) {
	j.Status, j.CompletedAt, j.Error = JobStatusFailed, stamp(), reason
}

// ShouldRetry is true for a failed run with attempts left
func (j *Job) ShouldRetry() bool {
	if j.Status != JobStatusFailed {
		return false
	}
	return j.RetryCount < j.MaxRetries
}

// ScheduleRetry puts the run back to PENDING, due after delay
func (j *Job) ScheduleRetry(delay time.Duration) {
	due := time.Now().Add(delay)
	j.RetryCount++
	j.Status, j.NextRetryAt, j.Error = JobStatusPending, &due, ""
}

// JobExecutor executes queued jobs
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	Enabled           bool
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	QueueSize         int
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:           true,
		MaxConcurrentJobs: 1,
		JobTimeout:        30 * time.Minute,
		RetryAttempts:     3,
		RetryDelay:        5 * time.Minute,
		QueueSize:         16,
	}
}

// Validate checks the worker pool settings
func (c SchedulerConfig) Validate() error {
	if c.MaxConcurrentJobs < 1 {
		return fmt.Errorf("%w: max_concurrent_jobs must be at least 1", ErrInvalidConfig)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("%w: job_timeout must be positive", ErrInvalidConfig)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("%w: retry_attempts cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Scheduler runs queued jobs on a fixed worker pool with retries
type Scheduler struct {
	config   SchedulerConfig
	executor JobExecutor
	logger   *zap.Logger

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config SchedulerConfig, executor JobExecutor, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultSchedulerConfig().QueueSize
	}
	return &Scheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan *Job, config.QueueSize),
	}
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Commission scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)

	return nil
}

// Stop cancels running jobs and waits for the workers
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Commission scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Commission scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether workers are active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// SubmitJob submits a job for execution
func (s *Scheduler) SubmitJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		s.logger.Debug("Job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("trigger", job.Trigger),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// ScheduleRun queues a commission run anchored at scheduledFor
func (s *Scheduler) ScheduleRun(scheduledFor time.Time, trigger string) (*Job, error) {
	job := NewJob(scheduledFor, trigger, s.config.RetryAttempts)
	if err := s.SubmitJob(job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Worker stopping", zap.Int("worker_id", workerID))
			return
		case job := <-s.jobs:
			s.processJob(ctx, job, workerID)
		}
	}
}

// waitUntilDue blocks until a retried run is due. False means the pool is stopping.
func waitUntilDue(ctx context.Context, job *Job) bool {
	if job.NextRetryAt == nil {
		return true
	}
	wait := time.Until(*job.NextRetryAt)
	if wait <= 0 {
		return true
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	if !waitUntilDue(ctx, job) {
		return
	}

	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("trigger", job.Trigger),
		zap.Time("scheduled_for", job.ScheduledFor),
	)

	job.Start()
	log.Info("Commission run started", zap.Int("attempt", job.RetryCount+1))

	runCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	err := s.execute(runCtx, job)
	cancel()

	if err == nil {
		job.Complete()
		log.Info("Commission run finished")
		return
	}

	job.Fail(err.Error())
	log.Error("Commission run failed", zap.Error(err))
	if ctx.Err() != nil || !job.ShouldRetry() {
		return
	}
	s.requeue(job, log)
}

// requeue hands a failed run back to the pool after RetryDelay
func (s *Scheduler) requeue(job *Job, log *zap.Logger) {
	job.ScheduleRetry(s.config.RetryDelay)
	select {
	case s.jobs <- job:
		log.Info("Commission run queued for retry",
			zap.Int("retry_count", job.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.Timep("next_retry_at", job.NextRetryAt),
		)
	default:
		log.Warn("Retry dropped, queue full")
	}
}

// execute shields the worker from a panicking executor
func (s *Scheduler) execute(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return s.executor.Execute(ctx, job)
}
