package handler

import (
	"time"

	appcommission "github.com/erp/commission/internal/application/commission"
	"github.com/erp/commission/internal/domain/commission"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RunCommissionRequest triggers a run. From and To replace the period
// selector and must be given together.
type RunCommissionRequest struct {
	Period string `json:"period" binding:"omitempty,period"`
	From   string `json:"from" binding:"omitempty,datetime=2006-01-02"`
	To     string `json:"to" binding:"omitempty,datetime=2006-01-02"`
	DryRun bool   `json:"dry_run"`
}

// RatePreviewQuery is the query of the rate preview endpoint
type RatePreviewQuery struct {
	Total string `form:"total" binding:"required,numeric"`
}

// DraftListQuery selects drafts by payroll date
type DraftListQuery struct {
	PayrollDate string `form:"payroll_date" binding:"required,datetime=2006-01-02"`
}

// AuditQuery selects audit entries by run key
type AuditQuery struct {
	RunKey string `form:"run_key" binding:"required,run_key"`
}

// RunResponse summarises a finished run
type RunResponse struct {
	RunKey      string                             `json:"run_key,omitempty"`
	Status      string                             `json:"status"`
	DryRun      bool                               `json:"dry_run"`
	PeriodStart string                             `json:"period_start,omitempty"`
	PeriodEnd   string                             `json:"period_end,omitempty"`
	PayrollDate string                             `json:"payroll_date,omitempty"`
	Done        int                                `json:"done"`
	Errors      int                                `json:"errors"`
	Skipped     int                                `json:"skipped"`
	Totals      map[string]decimal.Decimal         `json:"totals"`
	Outcomes    []appcommission.UpsertOutcome      `json:"outcomes"`
	Failures    []appcommission.SalesPersonFailure `json:"failures"`
	TraceEvents int                                `json:"trace_events"`
}

// DraftResponse is one additional salary record
type DraftResponse struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Employee        string          `json:"employee"`
	SalaryComponent string          `json:"salary_component"`
	PayrollDate     string          `json:"payroll_date"`
	Amount          decimal.Decimal `json:"amount"`
	Remarks         string          `json:"remarks"`
	Status          string          `json:"status"`
	Version         int             `json:"version"`
}

// AuditEntryResponse is one persisted run trace
type AuditEntryResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	RunKey    string    `json:"run_key"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func toRunResponse(result *appcommission.RunResult) RunResponse {
	resp := RunResponse{
		RunKey:   result.RunKey,
		Status:   string(result.Status),
		DryRun:   result.DryRun,
		Done:     result.Done,
		Errors:   result.Errors,
		Skipped:  result.Skipped,
		Totals:   map[string]decimal.Decimal(result.Totals),
		Outcomes: result.Outcomes,
		Failures: result.Failures,
	}
	if resp.Totals == nil {
		resp.Totals = map[string]decimal.Decimal{}
	}
	if resp.Outcomes == nil {
		resp.Outcomes = []appcommission.UpsertOutcome{}
	}
	if resp.Failures == nil {
		resp.Failures = []appcommission.SalesPersonFailure{}
	}
	if !result.Period.Start.IsZero() {
		resp.PeriodStart = result.Period.Start.Format(time.DateOnly)
		resp.PeriodEnd = result.Period.End.Format(time.DateOnly)
		resp.PayrollDate = result.Period.PayrollDate.Format(time.DateOnly)
	}
	if result.Trace != nil {
		resp.TraceEvents = result.Trace.Len()
	}
	return resp
}

func toDraftResponses(drafts []commission.AdditionalSalary) []DraftResponse {
	out := make([]DraftResponse, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, DraftResponse{
			ID:              d.ID,
			Name:            d.Name,
			Employee:        d.Employee,
			SalaryComponent: d.SalaryComponent,
			PayrollDate:     d.PayrollDate.Format(time.DateOnly),
			Amount:          d.Amount,
			Remarks:         d.Remarks,
			Status:          d.DocStatus.String(),
			Version:         d.GetVersion(),
		})
	}
	return out
}

func toAuditResponses(entries []commission.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse(e))
	}
	return out
}
