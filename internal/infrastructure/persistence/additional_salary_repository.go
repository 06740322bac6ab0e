package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/commission/internal/domain/commission"
	"github.com/erp/commission/internal/domain/shared"
	"github.com/erp/commission/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAdditionalSalaryRepository implements commission.AdditionalSalaryRepository using GORM
type GormAdditionalSalaryRepository struct {
	db *gorm.DB
}

// NewGormAdditionalSalaryRepository creates a new GormAdditionalSalaryRepository
func NewGormAdditionalSalaryRepository(db *gorm.DB) *GormAdditionalSalaryRepository {
	return &GormAdditionalSalaryRepository{db: db}
}

// WithTx returns a new repository instance bound to tx
func (r *GormAdditionalSalaryRepository) WithTx(tx *gorm.DB) *GormAdditionalSalaryRepository {
	return &GormAdditionalSalaryRepository{db: tx}
}

// FindDraft returns the draft holding key, or nil when there is none
func (r *GormAdditionalSalaryRepository) FindDraft(ctx context.Context, key commission.DraftKey) (*commission.AdditionalSalary, error) {
	var model models.AdditionalSalaryModel
	err := r.db.WithContext(ctx).
		Where("employee = ? AND salary_component = ? AND payroll_date = ? AND docstatus = ?",
			key.Employee, key.SalaryComponent, models.CalendarDate(key.PayrollDate), int(commission.DocStatusDraft)).
		Order("created_at").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID returns the record with id, or nil when there is none
func (r *GormAdditionalSalaryRepository) FindByID(ctx context.Context, id uuid.UUID) (*commission.AdditionalSalary, error) {
	var model models.AdditionalSalaryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new draft. A concurrent draft for the same key surfaces
// as commission.ErrDraftAlreadyExists through the partial unique index.
func (r *GormAdditionalSalaryRepository) Create(ctx context.Context, draft *commission.AdditionalSalary) error {
	model := models.AdditionalSalaryModelFromDomain(draft)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return commission.ErrDraftAlreadyExists
		}
		return err
	}
	return nil
}

// Save writes amount and remarks back with optimistic locking. Only drafts
// are updated; a record submitted in the meantime reports a conflict.
func (r *GormAdditionalSalaryRepository) Save(ctx context.Context, draft *commission.AdditionalSalary) error {
	currentVersion := draft.Version
	model := models.AdditionalSalaryModelFromDomain(draft)

	result := r.db.WithContext(ctx).
		Model(&models.AdditionalSalaryModel{}).
		Where("id = ? AND version = ? AND docstatus = ?", draft.ID, currentVersion, int(commission.DocStatusDraft)).
		Updates(map[string]any{
			"amount":                            model.Amount,
			"remarks":                           model.Remarks,
			"overwrite_salary_structure_amount": model.OverwriteSalaryStructureAmount,
			"version":                           currentVersion + 1,
			"updated_at":                        model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missingOrConflict(ctx, draft.ID)
	}
	draft.IncrementVersion()
	return nil
}

// Submit moves a draft to submitted status
func (r *GormAdditionalSalaryRepository) Submit(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.AdditionalSalaryModel{}).
		Where("id = ? AND docstatus = ?", id, int(commission.DocStatusDraft)).
		Updates(map[string]any{
			"docstatus":  int(commission.DocStatusSubmitted),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		err := r.missingOrConflict(ctx, id)
		if errors.Is(err, shared.ErrConflict) {
			return commission.ErrDraftNotEditable
		}
		return err
	}
	return nil
}

// FindByPayrollDate lists every record for a payroll date, drafts and
// submitted alike, ordered by employee
func (r *GormAdditionalSalaryRepository) FindByPayrollDate(ctx context.Context, payrollDate time.Time) ([]commission.AdditionalSalary, error) {
	var rows []models.AdditionalSalaryModel
	err := r.db.WithContext(ctx).
		Where("payroll_date = ?", models.CalendarDate(payrollDate)).
		Order("employee, salary_component, docstatus").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]commission.AdditionalSalary, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

func (r *GormAdditionalSalaryRepository) missingOrConflict(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.AdditionalSalaryModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.ErrNotFound
	}
	return shared.ErrConflict
}
