package commission

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InvoiceLedger reads fully settled sales invoices with their sales-team rows.
// Each method returns one Allocation per (invoice, sales-team row) pair.
type InvoiceLedger interface {
	// ImmediateAllocations returns invoices settled at the point of sale and
	// posted inside the period.
	ImmediateAllocations(ctx context.Context, period Period) ([]Allocation, error)
	// DeferredAllocations returns invoices without immediate payment records
	// whose latest submitted payment entry falls inside the period.
	DeferredAllocations(ctx context.Context, period Period) ([]Allocation, error)
}

// EmployeeDirectory resolves the employee linked to a salesperson
type EmployeeDirectory interface {
	// EmployeeFor returns "" with a nil error when no employee is linked
	EmployeeFor(ctx context.Context, salesPerson string) (string, error)
}

// AdditionalSalaryRepository stores payroll additions.
// FindDraft and FindByID return nil, nil when nothing matches.
type AdditionalSalaryRepository interface {
	FindDraft(ctx context.Context, key DraftKey) (*AdditionalSalary, error)
	FindByID(ctx context.Context, id uuid.UUID) (*AdditionalSalary, error)
	// Create returns ErrDraftAlreadyExists when another draft holds the key
	Create(ctx context.Context, draft *AdditionalSalary) error
	// Save persists changes with an optimistic version check
	Save(ctx context.Context, draft *AdditionalSalary) error
	// Submit moves the record to submitted status
	Submit(ctx context.Context, id uuid.UUID) error
	FindByPayrollDate(ctx context.Context, payrollDate time.Time) ([]AdditionalSalary, error)
}

// AuditEntry is one persisted run trace
type AuditEntry struct {
	ID        uuid.UUID
	Title     string
	RunKey    string
	Body      string
	CreatedAt time.Time
}

// AuditLog persists run traces
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
	ListByRunKey(ctx context.Context, runKey string) ([]AuditEntry, error)
}

// SettingsRepository loads commission settings stored alongside the ledger.
// Load returns nil, nil when no settings record exists.
type SettingsRepository interface {
	Load(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, settings Settings) error
}
