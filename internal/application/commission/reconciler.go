package commission

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/commission/internal/domain/commission"
	"github.com/erp/commission/internal/domain/shared"
	"github.com/erp/commission/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UpsertAction describes what the reconciler did with a draft
type UpsertAction string

const (
	ActionCreated     UpsertAction = "created"
	ActionUpdated     UpsertAction = "updated"
	ActionWouldCreate UpsertAction = "would_create"
	ActionWouldUpdate UpsertAction = "would_update"
)

// DraftRequest asks for one salesperson's commission to be reflected in a draft
type DraftRequest struct {
	SalesPerson string
	Key         commission.DraftKey
	Amount      decimal.Decimal
	RunKey      string
	DryRun      bool
}

// UpsertOutcome reports the draft touched by an upsert
type UpsertOutcome struct {
	SalesPerson string          `json:"sales_person"`
	Employee    string          `json:"employee"`
	Action      UpsertAction    `json:"action"`
	DraftID     uuid.UUID       `json:"draft_id"`
	DraftName   string          `json:"draft_name"`
	Amount      decimal.Decimal `json:"amount"`
}

// DraftReconciler keeps exactly one draft per employee, component and
// payroll date in step with the latest computed commission.
type DraftReconciler struct {
	repo    commission.AdditionalSalaryRepository
	logger  *zap.Logger
	metrics *telemetry.RunMetrics
}

// NewDraftReconciler creates a new DraftReconciler
func NewDraftReconciler(repo commission.AdditionalSalaryRepository, logger *zap.Logger, metrics *telemetry.RunMetrics) *DraftReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftReconciler{repo: repo, logger: logger, metrics: metrics}
}

// Upsert updates the existing draft in place or creates a new one.
// When the create loses a race against another writer holding the same key,
// the winner's draft is re-read and updated instead.
func (r *DraftReconciler) Upsert(ctx context.Context, req DraftRequest, trace *commission.Trace) (UpsertOutcome, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "commission_draft", "upsert",
		telemetry.SpanAttrSalesPerson, req.SalesPerson,
		telemetry.SpanAttrEmployee, req.Key.Employee,
		telemetry.SpanAttrAmount, req.Amount.StringFixed(2),
		telemetry.SpanAttrDryRun, req.DryRun,
	)
	defer span.End()

	if trace == nil {
		trace = commission.NewTrace()
	}
	outcome := UpsertOutcome{SalesPerson: req.SalesPerson, Employee: req.Key.Employee, Amount: req.Amount}

	if !req.Amount.IsPositive() {
		telemetry.RecordError(span, commission.ErrInvalidAmount)
		return outcome, commission.ErrInvalidAmount
	}

	existing, err := r.repo.FindDraft(ctx, req.Key)
	if err != nil {
		telemetry.RecordError(span, err)
		return outcome, fmt.Errorf("failed to look up draft: %w", err)
	}

	if existing == nil && !req.DryRun {
		draft, err := commission.NewAdditionalSalaryDraft(req.Key, req.Amount, req.RunKey)
		if err != nil {
			telemetry.RecordError(span, err)
			return outcome, err
		}
		err = r.repo.Create(ctx, draft)
		if err == nil {
			return r.done(ctx, outcome, ActionCreated, draft, trace), nil
		}
		if !errors.Is(err, commission.ErrDraftAlreadyExists) {
			telemetry.RecordError(span, err)
			return outcome, fmt.Errorf("failed to create draft: %w", err)
		}

		r.logger.Info("Draft created concurrently, updating the existing one",
			zap.String("employee", req.Key.Employee),
			zap.String("run_key", req.RunKey),
		)
		existing, err = r.repo.FindDraft(ctx, req.Key)
		if err != nil {
			telemetry.RecordError(span, err)
			return outcome, fmt.Errorf("failed to re-read draft: %w", err)
		}
		if existing == nil {
			telemetry.RecordError(span, shared.ErrConflict)
			return outcome, shared.ErrConflict
		}
	}

	if req.DryRun {
		if existing == nil {
			return r.preview(outcome, ActionWouldCreate, "", trace), nil
		}
		return r.preview(outcome, ActionWouldUpdate, existing.Name, trace), nil
	}

	if err := existing.Reassign(req.Amount, req.RunKey); err != nil {
		telemetry.RecordError(span, err)
		return outcome, err
	}
	if err := r.repo.Save(ctx, existing); err != nil {
		telemetry.RecordError(span, err)
		return outcome, fmt.Errorf("failed to save draft: %w", err)
	}
	return r.done(ctx, outcome, ActionUpdated, existing, trace), nil
}

// Submit hands a draft over to payroll. Submitted drafts are never changed by later runs.
func (r *DraftReconciler) Submit(ctx context.Context, id uuid.UUID) error {
	if err := r.repo.Submit(ctx, id); err != nil {
		return err
	}
	r.logger.Info("Draft submitted", zap.String("draft_id", id.String()))
	return nil
}

func (r *DraftReconciler) done(ctx context.Context, outcome UpsertOutcome, action UpsertAction, draft *commission.AdditionalSalary, trace *commission.Trace) UpsertOutcome {
	outcome.Action = action
	outcome.DraftID = draft.ID
	outcome.DraftName = draft.Name

	kind := commission.EventCreated
	if action == ActionUpdated {
		kind = commission.EventUpdated
	}
	trace.AppendFor(kind, outcome.SalesPerson, "DRAFT Additional Salary "+draft.Name,
		map[string]string{"amount": outcome.Amount.StringFixed(2)})
	r.metrics.RecordDraft(ctx, string(action), outcome.Amount)
	r.logger.Debug("Draft reconciled",
		zap.String("sales_person", outcome.SalesPerson),
		zap.String("employee", outcome.Employee),
		zap.String("draft", draft.Name),
		zap.String("action", string(action)),
	)
	return outcome
}

func (r *DraftReconciler) preview(outcome UpsertOutcome, action UpsertAction, name string, trace *commission.Trace) UpsertOutcome {
	outcome.Action = action
	outcome.DraftName = name
	message := "DRY RUN would create draft"
	if action == ActionWouldUpdate {
		message = "DRY RUN would update draft " + name
	}
	trace.AppendFor(commission.EventCalc, outcome.SalesPerson, message,
		map[string]string{"amount": outcome.Amount.StringFixed(2)})
	return outcome
}
