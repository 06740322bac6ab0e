package models

import (
	"time"

	"github.com/erp/commission/internal/domain/commission"
	"github.com/google/uuid"
)

// AuditLogModel stores one rendered run trace
type AuditLogModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title     string    `gorm:"type:varchar(140);not null"`
	RunKey    string    `gorm:"type:varchar(140);not null;index"`
	Body      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "commission_audit_logs"
}

// ToDomain converts the model to an audit entry
func (m *AuditLogModel) ToDomain() commission.AuditEntry {
	return commission.AuditEntry{
		ID:        m.ID,
		Title:     m.Title,
		RunKey:    m.RunKey,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}
}

// AuditLogModelFromDomain creates a model from an audit entry, filling in
// the ID and timestamp when they are unset
func AuditLogModelFromDomain(e commission.AuditEntry) *AuditLogModel {
	m := &AuditLogModel{
		ID:        e.ID,
		Title:     e.Title,
		RunKey:    e.RunKey,
		Body:      e.Body,
		CreatedAt: e.CreatedAt,
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return m
}
