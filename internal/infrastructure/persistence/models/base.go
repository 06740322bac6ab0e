package models

import (
	"time"

	"github.com/erp/commission/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel carries the key and timestamps of an owned table
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// AggregateModel adds the optimistic-lock version drafts are saved under
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// ToDomainAggregateRoot copies the row identity into a domain root
func (m *AggregateModel) ToDomainAggregateRoot() shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{
		BaseEntity: shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		Version:    m.Version,
	}
}

// FromDomainAggregateRoot is the inverse of ToDomainAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.ID, m.CreatedAt, m.UpdatedAt = a.ID, a.CreatedAt, a.UpdatedAt
	m.Version = a.Version
}

// CalendarDate truncates t to midnight UTC of its own calendar day. Date
// columns are always written and compared in this form.
func CalendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// All returns every model owned by this package, in migration order
func All() []any {
	return []any{
		&SalesInvoiceModel{},
		&SalesTeamModel{},
		&SalesInvoicePaymentModel{},
		&PaymentEntryModel{},
		&PaymentEntryReferenceModel{},
		&SalesPersonModel{},
		&AdditionalSalaryModel{},
		&AuditLogModel{},
		&CommissionSettingsModel{},
		&CommissionSlabModel{},
	}
}
