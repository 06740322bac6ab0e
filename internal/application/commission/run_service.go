package commission

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/erp/commission/internal/domain/commission"
	"github.com/erp/commission/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Audit log titles
const (
	TitleSkipped = "AUTO COMMISSION (SKIPPED)"
	TitleResult  = "AUTO COMMISSION (RESULT)"
	TitleDryRun  = "AUTO COMMISSION (DRY RUN)"
)

// RunStatus is the final state of a run
type RunStatus string

const (
	StatusDisabled  RunStatus = "disabled"
	StatusSkipped   RunStatus = "skipped"
	StatusCompleted RunStatus = "completed"
)

// RunLock guards a run key against concurrent runs
type RunLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RunRequest describes one invocation. Zero values mean "use settings".
type RunRequest struct {
	// Now anchors period resolution; zero means the service clock
	Now time.Time
	// Period overrides the configured selector
	Period *commission.PeriodSelector
	// From and To, when both set, replace the month window
	From *time.Time
	To   *time.Time
	// DryRun computes everything without writing drafts
	DryRun bool
	// Trigger names the caller (scheduler, http, cli) for logs
	Trigger string
}

// SalesPersonFailure is one isolated per-salesperson failure
type SalesPersonFailure struct {
	SalesPerson string `json:"sales_person"`
	Message     string `json:"message"`
}

// RunResult summarises a run
type RunResult struct {
	RunKey   string
	Period   commission.Period
	Status   RunStatus
	DryRun   bool
	Done     int
	Errors   int
	Skipped  int
	Totals   commission.RevenueTotals
	Outcomes []UpsertOutcome
	Failures []SalesPersonFailure
	Trace    *commission.Trace
}

// RatePreview is the commission a total would earn under the active schedule
type RatePreview struct {
	Total      decimal.Decimal   `json:"total"`
	Rate       decimal.Decimal   `json:"rate"`
	Commission decimal.Decimal   `json:"commission"`
	Tiers      []commission.Tier `json:"tiers"`
}

// RunServiceConfig tunes a RunService
type RunServiceConfig struct {
	Location          *time.Location
	SkippedTraceLimit int
	ResultTraceLimit  int
	LockTTL           time.Duration
}

// RunService executes commission runs: resolve settings and period,
// aggregate revenue, compute commission and reconcile one draft per
// salesperson, then persist the trace.
type RunService struct {
	settings   *SettingsResolver
	aggregator *RevenueAggregator
	reconciler *DraftReconciler
	directory  commission.EmployeeDirectory
	audit      commission.AuditLog
	lock       RunLock
	metrics    *telemetry.RunMetrics
	logger     *zap.Logger
	config     RunServiceConfig
	clock      func() time.Time
}

// NewRunService creates a new RunService. lock and metrics may be nil.
func NewRunService(
	settings *SettingsResolver,
	aggregator *RevenueAggregator,
	reconciler *DraftReconciler,
	directory commission.EmployeeDirectory,
	audit commission.AuditLog,
	lock RunLock,
	metrics *telemetry.RunMetrics,
	logger *zap.Logger,
	cfg RunServiceConfig,
) *RunService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SkippedTraceLimit <= 0 {
		cfg.SkippedTraceLimit = commission.SkippedTraceLimit
	}
	if cfg.ResultTraceLimit <= 0 {
		cfg.ResultTraceLimit = commission.ResultTraceLimit
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	return &RunService{
		settings:   settings,
		aggregator: aggregator,
		reconciler: reconciler,
		directory:  directory,
		audit:      audit,
		lock:       lock,
		metrics:    metrics,
		logger:     logger,
		config:     cfg,
		clock:      time.Now,
	}
}

// Run executes one commission run. Settings and aggregation failures abort
// the run; per-salesperson failures are counted in the result. When the
// trace cannot be persisted the result is still returned with the error.
func (s *RunService) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	started := s.clock()
	ctx, span := telemetry.StartServiceSpan(ctx, "commission_run", "run", telemetry.SpanAttrDryRun, req.DryRun)
	defer span.End()

	settings, err := s.settings.Resolve(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !settings.Enabled {
		s.logger.Info("Commission run disabled", zap.String("trigger", req.Trigger))
		trace := commission.NewTrace()
		trace.Append(commission.EventDisabled, "ENABLED=0", nil)
		return &RunResult{Status: StatusDisabled, DryRun: req.DryRun, Totals: commission.RevenueTotals{}, Trace: trace}, nil
	}

	period, err := s.resolvePeriod(req, settings)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	runKey := commission.RunKey(period, settings.RunKeySuffix)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrRunKey, runKey,
		telemetry.SpanAttrPeriodStart, period.Start.Format(time.DateOnly),
		telemetry.SpanAttrPeriodEnd, period.End.Format(time.DateOnly),
	)
	log := s.logger.With(zap.String("run_key", runKey), zap.String("trigger", req.Trigger))

	result := &RunResult{
		RunKey: runKey,
		Period: period,
		DryRun: req.DryRun,
		Totals: commission.RevenueTotals{},
		Trace:  commission.NewTrace(),
	}
	trace := result.Trace
	trace.Append(commission.EventPing, "", map[string]string{
		"period":    period.String(),
		"run_key":   runKey,
		"force_run": flag(settings.ForceRun),
		"component": settings.Component,
	})

	if !settings.ForceRun && !req.DryRun {
		trace.Append(commission.EventStop, "FORCE_RUN=0", nil)
		result.Status = StatusSkipped
		log.Info("Commission run skipped, force run is off")
		s.metrics.RecordRun(ctx, string(StatusSkipped), s.clock().Sub(started))
		return result, s.persist(ctx, log, TitleSkipped, runKey, trace.Render(s.config.SkippedTraceLimit))
	}

	if s.lock != nil && !req.DryRun {
		ok, err := s.lock.Acquire(ctx, runKey, s.config.LockTTL)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to acquire run lock: %w", err)
		}
		if !ok {
			telemetry.RecordError(span, commission.ErrRunInProgress)
			return nil, commission.ErrRunInProgress
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), runKey); err != nil {
				log.Warn("Failed to release run lock", zap.Error(err))
			}
		}()
	}

	var runErr error
	telemetry.WithRunLabels(ctx, "commission_run", runKey, func(ctx context.Context) {
		runErr = s.execute(ctx, log, settings, result)
	})
	if runErr != nil {
		telemetry.RecordError(span, runErr)
		return nil, runErr
	}

	result.Status = StatusCompleted
	trace.Append(commission.EventDone, "", map[string]string{
		"updated_or_created_draft": strconv.Itoa(result.Done),
		"errors":                   strconv.Itoa(result.Errors),
		"run_key":                  runKey,
	})
	telemetry.SetAttributes(span, "commission.done", result.Done, "commission.errors", result.Errors)
	s.metrics.RecordRun(ctx, string(StatusCompleted), s.clock().Sub(started))
	log.Info("Commission run completed",
		zap.Int("done", result.Done),
		zap.Int("errors", result.Errors),
		zap.Int("skipped", result.Skipped),
		zap.Bool("dry_run", req.DryRun),
	)

	title := TitleResult
	if req.DryRun {
		title = TitleDryRun
	}
	return result, s.persist(ctx, log, title, runKey, trace.Render(s.config.ResultTraceLimit))
}

func (s *RunService) execute(ctx context.Context, log *zap.Logger, settings commission.Settings, result *RunResult) error {
	totals, err := s.aggregator.Aggregate(ctx, result.Period, result.Trace)
	if err != nil {
		log.Error("Revenue aggregation failed", zap.Error(err))
		return err
	}
	result.Totals = totals

	schedule := settings.Schedule()
	result.Trace.Append(commission.EventStep, "STEP 3 CALC START",
		map[string]string{"sales_persons": strconv.Itoa(totals.Len())})

	for _, sp := range totals.SalesPersons() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.processSalesPerson(ctx, log, sp, totals.Get(sp), schedule, settings, result)
	}
	return nil
}

// processSalesPerson computes and books one salesperson's commission.
// Every failure, including a panic, is recorded on result and swallowed.
func (s *RunService) processSalesPerson(
	ctx context.Context,
	log *zap.Logger,
	salesPerson string,
	total decimal.Decimal,
	schedule commission.Schedule,
	settings commission.Settings,
	result *RunResult,
) {
	trace := result.Trace
	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, log, result, salesPerson, fmt.Errorf("panic: %v", r))
		}
	}()

	rate := schedule.Rate(total)
	amount := schedule.Commission(total)
	trace.AppendFor(commission.EventCalc, salesPerson, "", map[string]string{
		"total":      total.StringFixed(2),
		"rate":       rate.String(),
		"commission": amount.StringFixed(2),
	})
	if !amount.IsPositive() {
		trace.AppendFor(commission.EventSkip, salesPerson, "commission<=0", nil)
		result.Skipped++
		return
	}

	employee, err := s.directory.EmployeeFor(ctx, salesPerson)
	if err != nil {
		s.fail(ctx, log, result, salesPerson, fmt.Errorf("employee lookup failed: %w", err))
		return
	}
	if employee == "" {
		trace.AppendFor(commission.EventSkip, salesPerson, "no employee linked", nil)
		log.Debug("Sales person has no linked employee", zap.String("sales_person", salesPerson))
		result.Skipped++
		return
	}

	outcome, err := s.reconciler.Upsert(ctx, DraftRequest{
		SalesPerson: salesPerson,
		Key: commission.DraftKey{
			Employee:        employee,
			SalaryComponent: settings.Component,
			PayrollDate:     result.Period.PayrollDate,
		},
		Amount: amount,
		RunKey: result.RunKey,
		DryRun: result.DryRun,
	}, trace)
	if err != nil {
		s.fail(ctx, log, result, salesPerson, err)
		return
	}
	result.Outcomes = append(result.Outcomes, outcome)
	result.Done++
}

func (s *RunService) fail(ctx context.Context, log *zap.Logger, result *RunResult, salesPerson string, err error) {
	result.Errors++
	result.Failures = append(result.Failures, SalesPersonFailure{SalesPerson: salesPerson, Message: err.Error()})
	result.Trace.AppendFor(commission.EventError, salesPerson, "", map[string]string{"msg": err.Error()})
	s.metrics.RecordFailure(ctx)
	log.Error("Commission booking failed",
		zap.String("sales_person", salesPerson),
		zap.Error(err),
	)
}

func (s *RunService) persist(ctx context.Context, log *zap.Logger, title, runKey, body string) error {
	if s.audit == nil {
		return nil
	}
	err := s.audit.Record(context.WithoutCancel(ctx), commission.AuditEntry{
		ID:        uuid.New(),
		Title:     title,
		RunKey:    runKey,
		Body:      body,
		CreatedAt: s.clock(),
	})
	if err != nil {
		log.Error("Failed to persist commission trace", zap.String("title", title), zap.Error(err))
		return fmt.Errorf("failed to persist run trace: %w", err)
	}
	return nil
}

func (s *RunService) resolvePeriod(req RunRequest, settings commission.Settings) (commission.Period, error) {
	if req.From != nil && req.To != nil {
		return commission.PeriodFromRange(*req.From, *req.To, s.config.Location)
	}
	now := req.Now
	if now.IsZero() {
		now = s.clock()
	}
	selector := settings.Period
	if req.Period != nil {
		selector = *req.Period
	}
	return commission.ResolvePeriod(now, selector, s.config.Location), nil
}

// PreviewRate returns the rate and commission total would earn under the active schedule
func (s *RunService) PreviewRate(ctx context.Context, total decimal.Decimal) (*RatePreview, error) {
	if total.IsNegative() {
		return nil, commission.ErrInvalidAmount
	}
	settings, err := s.settings.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	schedule := settings.Schedule()
	return &RatePreview{
		Total:      total,
		Rate:       schedule.Rate(total),
		Commission: schedule.Commission(total),
		Tiers:      schedule.Tiers(),
	}, nil
}

// Drafts lists the additional salaries booked for a payroll date
func (s *RunService) Drafts(ctx context.Context, payrollDate time.Time) ([]commission.AdditionalSalary, error) {
	return s.reconciler.repo.FindByPayrollDate(ctx, payrollDate)
}

// SubmitDraft moves a draft to submitted status
func (s *RunService) SubmitDraft(ctx context.Context, id uuid.UUID) error {
	return s.reconciler.Submit(ctx, id)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
