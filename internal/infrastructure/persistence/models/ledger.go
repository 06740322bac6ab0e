package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesInvoiceModel is a posted sales invoice of the host ledger
type SalesInvoiceModel struct {
	Name              string          `gorm:"type:varchar(140);primaryKey"`
	Customer          string          `gorm:"type:varchar(140)"`
	PostingDate       time.Time       `gorm:"type:date;not null;index"`
	NetTotal          decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	OutstandingAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	IsReturn          bool            `gorm:"not null;default:false"`
	IsPOS             bool            `gorm:"column:is_pos;not null;default:false"`
	DocStatus         int             `gorm:"column:docstatus;not null;default:0;index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName returns the table name for GORM
func (SalesInvoiceModel) TableName() string {
	return "sales_invoices"
}

// SalesTeamModel attributes a share of an invoice to a salesperson.
// A null AllocatedPercentage means the whole invoice.
type SalesTeamModel struct {
	ID                  uint                `gorm:"primaryKey;autoIncrement"`
	Parent              string              `gorm:"type:varchar(140);not null;index"`
	Idx                 int                 `gorm:"not null;default:0"`
	SalesPerson         string              `gorm:"type:varchar(140);not null;index"`
	AllocatedPercentage decimal.NullDecimal `gorm:"type:decimal(9,4)"`
}

// TableName returns the table name for GORM
func (SalesTeamModel) TableName() string {
	return "sales_team"
}

// SalesInvoicePaymentModel is a payment taken at the point of sale. Its
// presence marks the invoice as immediately settled.
type SalesInvoicePaymentModel struct {
	ID            uint            `gorm:"primaryKey;autoIncrement"`
	Parent        string          `gorm:"type:varchar(140);not null;index"`
	ModeOfPayment string          `gorm:"type:varchar(140)"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (SalesInvoicePaymentModel) TableName() string {
	return "sales_invoice_payments"
}

// PaymentEntryModel is a payment received after the invoice was posted
type PaymentEntryModel struct {
	Name        string          `gorm:"type:varchar(140);primaryKey"`
	PostingDate time.Time       `gorm:"type:date;not null;index"`
	PaidAmount  decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	DocStatus   int             `gorm:"column:docstatus;not null;default:0"`
}

// TableName returns the table name for GORM
func (PaymentEntryModel) TableName() string {
	return "payment_entries"
}

// PaymentEntryReferenceModel links a payment entry to the documents it settles
type PaymentEntryReferenceModel struct {
	ID               uint            `gorm:"primaryKey;autoIncrement"`
	Parent           string          `gorm:"type:varchar(140);not null;index"`
	ReferenceDoctype string          `gorm:"type:varchar(140);not null"`
	ReferenceName    string          `gorm:"type:varchar(140);not null;index"`
	AllocatedAmount  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
}

// TableName returns the table name for GORM
func (PaymentEntryReferenceModel) TableName() string {
	return "payment_entry_references"
}

// SalesPersonModel is a salesperson, optionally linked to an employee
type SalesPersonModel struct {
	Name     string  `gorm:"type:varchar(140);primaryKey"`
	Employee *string `gorm:"type:varchar(140)"`
	Enabled  bool    `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (SalesPersonModel) TableName() string {
	return "sales_persons"
}
