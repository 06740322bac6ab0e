package persistence

import (
	"context"

	"github.com/erp/commission/internal/domain/commission"
	"github.com/erp/commission/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAuditLog implements commission.AuditLog
type GormAuditLog struct {
	db *gorm.DB
}

// NewGormAuditLog creates a new GormAuditLog
func NewGormAuditLog(db *gorm.DB) *GormAuditLog {
	return &GormAuditLog{db: db}
}

// Record inserts one audit entry
func (a *GormAuditLog) Record(ctx context.Context, entry commission.AuditEntry) error {
	return a.db.WithContext(ctx).Create(models.AuditLogModelFromDomain(entry)).Error
}

// ListByRunKey returns the entries of a run key, newest first
func (a *GormAuditLog) ListByRunKey(ctx context.Context, runKey string) ([]commission.AuditEntry, error) {
	var rows []models.AuditLogModel
	err := a.db.WithContext(ctx).
		Where("run_key = ?", runKey).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]commission.AuditEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}
