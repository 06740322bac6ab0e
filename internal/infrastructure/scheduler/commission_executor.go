package scheduler

import (
	"context"
	"errors"
	"fmt"

	appcommission "github.com/erp/commission/internal/application/commission"
	"github.com/erp/commission/internal/domain/commission"
	"go.uber.org/zap"
)

// CommissionRunner is the part of the run service the scheduler drives
type CommissionRunner interface {
	Run(ctx context.Context, req appcommission.RunRequest) (*appcommission.RunResult, error)
}

// CommissionRunExecutor executes jobs as commission runs
type CommissionRunExecutor struct {
	runner CommissionRunner
	logger *zap.Logger
}

// NewCommissionRunExecutor creates a new executor
func NewCommissionRunExecutor(runner CommissionRunner, logger *zap.Logger) *CommissionRunExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommissionRunExecutor{runner: runner, logger: logger}
}

// Execute runs the commission for the month resolved from job.ScheduledFor.
// A run already in progress elsewhere counts as success and is not retried,
// as does a finished run whose audit trace failed to save.
func (e *CommissionRunExecutor) Execute(ctx context.Context, job *Job) error {
	result, err := e.runner.Run(ctx, appcommission.RunRequest{
		Now:     job.ScheduledFor,
		Trigger: job.Trigger,
	})
	if errors.Is(err, commission.ErrRunInProgress) {
		e.logger.Info("Commission run already in progress, skipping job",
			zap.String("job_id", job.ID.String()))
		return nil
	}
	if err != nil && result == nil {
		return fmt.Errorf("commission run failed: %w", err)
	}
	if err != nil {
		// drafts are already written, only the audit trace is missing
		e.logger.Error("Commission run finished but its trace was not stored",
			zap.String("job_id", job.ID.String()),
			zap.String("run_key", result.RunKey),
			zap.Error(err),
		)
		return nil
	}

	e.logger.Info("Scheduled commission run finished",
		zap.String("job_id", job.ID.String()),
		zap.String("run_key", result.RunKey),
		zap.String("status", string(result.Status)),
		zap.Int("done", result.Done),
		zap.Int("errors", result.Errors),
	)
	return nil
}

var _ JobExecutor = (*CommissionRunExecutor)(nil)
