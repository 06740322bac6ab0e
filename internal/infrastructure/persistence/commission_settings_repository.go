package persistence

import (
	"context"
	"errors"

	"github.com/erp/commission/internal/domain/commission"
	"github.com/erp/commission/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSettingsRepository implements commission.SettingsRepository over the
// single commission_settings row and its slabs
type GormSettingsRepository struct {
	db *gorm.DB
}

// NewGormSettingsRepository creates a new GormSettingsRepository
func NewGormSettingsRepository(db *gorm.DB) *GormSettingsRepository {
	return &GormSettingsRepository{db: db}
}

// Load returns the stored settings, or nil when none were saved
func (r *GormSettingsRepository) Load(ctx context.Context) (*commission.Settings, error) {
	var model models.CommissionSettingsModel
	err := r.db.WithContext(ctx).
		Preload("Slabs", func(db *gorm.DB) *gorm.DB { return db.Order("idx") }).
		First(&model, "id = ?", models.SettingsRowID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save replaces the settings row and all of its slabs
func (r *GormSettingsRepository) Save(ctx context.Context, settings commission.Settings) error {
	model := models.CommissionSettingsModelFromDomain(settings)
	slabs := model.Slabs
	model.Slabs = nil

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "force_run", "component", "run_key_suffix", "period", "updated_at"}),
		}).Create(model).Error; err != nil {
			return err
		}
		if err := tx.Where("settings_id = ?", models.SettingsRowID).Delete(&models.CommissionSlabModel{}).Error; err != nil {
			return err
		}
		if len(slabs) == 0 {
			return nil
		}
		return tx.Create(&slabs).Error
	})
}
