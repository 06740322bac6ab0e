package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/commission/internal/domain/commission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockPostgres opens GORM on the postgres dialector over a mocked connection
func newMockPostgres(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestGormInvoiceLedger_PostgresQueryShape(t *testing.T) {
	t.Run("immediate query binds status, window and POS flag", func(t *testing.T) {
		db, mock, mockDB := newMockPostgres(t)
		defer mockDB.Close()

		rows := sqlmock.NewRows([]string{"invoice", "sales_person", "net_total", "allocated_percentage"}).
			AddRow("SINV-001", "Asha", "1000.00", "60").
			AddRow("SINV-002", "Ravi", "250.00", nil)

		mock.ExpectQuery(`FROM sales_invoices si\s+JOIN sales_team st ON st.parent = si.name\s+WHERE si.docstatus = \$1`).
			WithArgs(1, false, day(2026, 2, 1), day(2026, 3, 1), true).
			WillReturnRows(rows)

		got, err := NewGormInvoiceLedger(db).ImmediateAllocations(context.Background(), february(t))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.True(t, got[0].Amount().Equal(dec("600")))
		assert.Nil(t, got[1].AllocatedPercent)
		assert.True(t, got[1].Amount().Equal(dec("250")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deferred query filters payment entries by doctype", func(t *testing.T) {
		db, mock, mockDB := newMockPostgres(t)
		defer mockDB.Close()

		mock.ExpectQuery(`MAX\(pe.posting_date\) AS last_payment_date`).
			WithArgs(1, "Sales Invoice", 1, false, day(2026, 2, 1), day(2026, 3, 1), false).
			WillReturnRows(sqlmock.NewRows([]string{"invoice", "sales_person", "net_total", "allocated_percentage"}))

		got, err := NewGormInvoiceLedger(db).DeferredAllocations(context.Background(), february(t))
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query errors propagate", func(t *testing.T) {
		db, mock, mockDB := newMockPostgres(t)
		defer mockDB.Close()

		mock.ExpectQuery(`FROM sales_invoices`).WillReturnError(errors.New("connection reset"))

		_, err := NewGormInvoiceLedger(db).ImmediateAllocations(context.Background(), february(t))
		assert.EqualError(t, err, "connection reset")
	})
}

func TestGormEmployeeDirectory_PostgresError(t *testing.T) {
	db, mock, mockDB := newMockPostgres(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT "name","employee" FROM "sales_persons" WHERE name = \$1`).
		WithArgs("Asha", 1).
		WillReturnError(errors.New("timeout"))

	_, err := NewGormEmployeeDirectory(db).EmployeeFor(context.Background(), "Asha")
	assert.EqualError(t, err, "timeout")
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, isUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "idx_additional_salaries_draft_key" (SQLSTATE 23505)`)))
	assert.True(t, isUniqueViolation(errors.New("UNIQUE constraint failed: additional_salaries.employee")))
	assert.False(t, isUniqueViolation(errors.New("deadlock detected")))
	assert.True(t, errors.Is(commission.ErrDraftAlreadyExists, commission.ErrDraftAlreadyExists))
}
