package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcommission "github.com/erp/commission/internal/application/commission"
	"github.com/erp/commission/internal/domain/commission"
	"github.com/erp/commission/internal/infrastructure/cache"
	"github.com/erp/commission/internal/infrastructure/config"
	"github.com/erp/commission/internal/infrastructure/logger"
	"github.com/erp/commission/internal/infrastructure/persistence"
	"github.com/erp/commission/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const triggerCLI = "cli"

type options struct {
	configPath string
	period     string
	from       string
	to         string
	dryRun     bool
	showTrace  bool
	logLevel   string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to config.toml (default: ./config.toml)")
	flag.StringVar(&opts.period, "period", "", "Period to evaluate: current_month or last_month (default: configured period)")
	flag.StringVar(&opts.from, "from", "", "Explicit window start (YYYY-MM-DD), requires -to")
	flag.StringVar(&opts.to, "to", "", "Explicit window end (YYYY-MM-DD), requires -from")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Compute commissions without writing drafts")
	flag.BoolVar(&opts.showTrace, "trace", false, "Print the execution trace")
	flag.StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "commission run failed: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
		Service:    cfg.App.Name,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = log.Sync()
	}()

	loc := cfg.Commission.TimeLocation()
	req, err := buildRequest(opts, loc)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:   log,
		LogLevel: logger.MapGormLogLevel(cfg.Log.Level),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if db.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			return err
		}
	}

	var lock appcommission.RunLock
	if cfg.Commission.LockEnabled {
		runLock, err := cache.NewRunLockFactory(cfg.Redis, cache.WithLogger(log)).CreateLock()
		if err != nil {
			return fmt.Errorf("failed to create run lock: %w", err)
		}
		defer func() {
			_ = runLock.Close()
		}()
		lock = runLock
	}

	metrics, err := telemetry.NewRunMetrics(nil)
	if err != nil {
		return err
	}

	auditLog := persistence.NewGormAuditLog(db.DB)
	service := appcommission.NewRunService(
		appcommission.NewSettingsResolver(persistence.NewGormSettingsRepository(db.DB), cfg.Commission.Settings()),
		appcommission.NewRevenueAggregator(persistence.NewGormInvoiceLedger(db.DB), log, metrics),
		appcommission.NewDraftReconciler(persistence.NewGormAdditionalSalaryRepository(db.DB), log, metrics),
		persistence.NewGormEmployeeDirectory(db.DB),
		auditLog,
		lock,
		metrics,
		log,
		appcommission.RunServiceConfig{
			Location:          loc,
			SkippedTraceLimit: cfg.Commission.SkippedTraceLimit,
			ResultTraceLimit:  cfg.Commission.ResultTraceLimit,
			LockTTL:           cfg.Commission.LockTTL,
		},
	)

	result, runErr := service.Run(ctx, req)
	if result != nil {
		if err := printResult(os.Stdout, result, opts.showTrace); err != nil {
			return err
		}
	}
	return runErr
}

// buildRequest turns the flags into a run request. -from and -to go together.
func buildRequest(opts options, loc *time.Location) (appcommission.RunRequest, error) {
	req := appcommission.RunRequest{DryRun: opts.dryRun, Trigger: triggerCLI}
	if opts.period != "" {
		selector := commission.ParsePeriodSelector(opts.period)
		req.Period = &selector
	}
	if (opts.from == "") != (opts.to == "") {
		return req, fmt.Errorf("-from and -to must be given together")
	}
	if opts.from == "" {
		return req, nil
	}
	from, err := time.ParseInLocation("2006-01-02", opts.from, loc)
	if err != nil {
		return req, fmt.Errorf("invalid -from: %w", err)
	}
	to, err := time.ParseInLocation("2006-01-02", opts.to, loc)
	if err != nil {
		return req, fmt.Errorf("invalid -to: %w", err)
	}
	if to.Before(from) {
		return req, fmt.Errorf("-to must not be before -from")
	}
	req.From, req.To = &from, &to
	return req, nil
}

type summary struct {
	RunKey      string                             `json:"run_key"`
	Status      appcommission.RunStatus            `json:"status"`
	DryRun      bool                               `json:"dry_run"`
	PeriodStart string                             `json:"period_start"`
	PeriodEnd   string                             `json:"period_end"`
	Done        int                                `json:"done"`
	Errors      int                                `json:"errors"`
	Skipped     int                                `json:"skipped"`
	Totals      map[string]string                  `json:"totals,omitempty"`
	Outcomes    []appcommission.UpsertOutcome      `json:"outcomes,omitempty"`
	Failures    []appcommission.SalesPersonFailure `json:"failures,omitempty"`
	Trace       string                             `json:"trace,omitempty"`
}

func printResult(out io.Writer, result *appcommission.RunResult, withTrace bool) error {
	s := summary{
		RunKey:   result.RunKey,
		Status:   result.Status,
		DryRun:   result.DryRun,
		Done:     result.Done,
		Errors:   result.Errors,
		Skipped:  result.Skipped,
		Outcomes: result.Outcomes,
		Failures: result.Failures,
	}
	if !result.Period.Start.IsZero() {
		s.PeriodStart = result.Period.Start.Format("2006-01-02")
		s.PeriodEnd = result.Period.End.Format("2006-01-02")
	}
	if result.Totals.Len() > 0 {
		s.Totals = make(map[string]string, result.Totals.Len())
		for _, sp := range result.Totals.SalesPersons() {
			s.Totals[sp] = result.Totals.Get(sp).StringFixed(2)
		}
	}
	if withTrace && result.Trace != nil {
		s.Trace = result.Trace.Render(0)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
