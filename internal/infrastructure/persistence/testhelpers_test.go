package persistence

import (
	"testing"
	"time"

	"github.com/erp/commission/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupCommissionTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pct(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: dec(s), Valid: true}
}

// ledgerSeed builds host ledger rows
type ledgerSeed struct {
	t  *testing.T
	db *gorm.DB
}

func (s ledgerSeed) invoice(name string, posted time.Time, netTotal string, mutate ...func(*models.SalesInvoiceModel)) {
	inv := models.SalesInvoiceModel{
		Name:              name,
		PostingDate:       posted,
		NetTotal:          dec(netTotal),
		OutstandingAmount: decimal.Zero,
		DocStatus:         1,
	}
	for _, m := range mutate {
		m(&inv)
	}
	require.NoError(s.t, s.db.Create(&inv).Error)
}

func (s ledgerSeed) team(invoice string, rows ...models.SalesTeamModel) {
	for i := range rows {
		rows[i].Parent = invoice
		rows[i].Idx = i + 1
	}
	require.NoError(s.t, s.db.Create(&rows).Error)
}

func (s ledgerSeed) posPayment(invoice, amount string) {
	require.NoError(s.t, s.db.Create(&models.SalesInvoicePaymentModel{
		Parent:        invoice,
		ModeOfPayment: "Cash",
		Amount:        dec(amount),
	}).Error)
}

func (s ledgerSeed) paymentEntry(name string, posted time.Time, docStatus int, doctype string, invoices ...string) {
	require.NoError(s.t, s.db.Create(&models.PaymentEntryModel{
		Name:        name,
		PostingDate: posted,
		PaidAmount:  dec("1"),
		DocStatus:   docStatus,
	}).Error)
	for _, inv := range invoices {
		require.NoError(s.t, s.db.Create(&models.PaymentEntryReferenceModel{
			Parent:           name,
			ReferenceDoctype: doctype,
			ReferenceName:    inv,
		}).Error)
	}
}

func (s ledgerSeed) salesPerson(name string, employee *string) {
	require.NoError(s.t, s.db.Create(&models.SalesPersonModel{Name: name, Employee: employee, Enabled: true}).Error)
}

func member(salesPerson string, allocated decimal.NullDecimal) models.SalesTeamModel {
	return models.SalesTeamModel{SalesPerson: salesPerson, AllocatedPercentage: allocated}
}

func ptr(s string) *string { return &s }
