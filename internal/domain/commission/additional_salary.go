package commission

import (
	"strings"
	"time"

	"github.com/erp/commission/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DocStatus mirrors the host document lifecycle
type DocStatus int

const (
	DocStatusDraft     DocStatus = 0
	DocStatusSubmitted DocStatus = 1
	DocStatusCancelled DocStatus = 2
)

// String returns the status label
func (s DocStatus) String() string {
	switch s {
	case DocStatusDraft:
		return "Draft"
	case DocStatusSubmitted:
		return "Submitted"
	case DocStatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// DraftKey identifies the single draft allowed per employee, component and payroll date
type DraftKey struct {
	Employee        string
	SalaryComponent string
	PayrollDate     time.Time
}

// AdditionalSalary is a payroll addition booked against a salary component.
// While in draft status the commission run may rewrite its amount; once the
// payroll process submits it, it is immutable here.
type AdditionalSalary struct {
	shared.BaseAggregateRoot
	Name                           string
	Employee                       string
	SalaryComponent                string
	PayrollDate                    time.Time
	Amount                         decimal.Decimal
	Remarks                        string
	OverwriteSalaryStructureAmount bool
	DocStatus                      DocStatus
}

// NewAdditionalSalaryDraft creates a draft that overrides the structure amount
// for its component. remarks carries the run key.
func NewAdditionalSalaryDraft(key DraftKey, amount decimal.Decimal, remarks string) (*AdditionalSalary, error) {
	if strings.TrimSpace(key.Employee) == "" {
		return nil, ErrEmployeeRequired
	}
	if strings.TrimSpace(key.SalaryComponent) == "" {
		return nil, shared.NewDomainError("COMPONENT_REQUIRED", "Salary component is required")
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	root := shared.NewBaseAggregateRoot()
	return &AdditionalSalary{
		BaseAggregateRoot:              root,
		Name:                           draftName(root),
		Employee:                       key.Employee,
		SalaryComponent:                key.SalaryComponent,
		PayrollDate:                    key.PayrollDate,
		Amount:                         amount,
		Remarks:                        remarks,
		OverwriteSalaryStructureAmount: true,
		DocStatus:                      DocStatusDraft,
	}, nil
}

// Key returns the uniqueness key of the record
func (a *AdditionalSalary) Key() DraftKey {
	return DraftKey{
		Employee:        a.Employee,
		SalaryComponent: a.SalaryComponent,
		PayrollDate:     a.PayrollDate,
	}
}

// IsDraft reports whether the record can still be changed
func (a *AdditionalSalary) IsDraft() bool {
	return a.DocStatus == DocStatusDraft
}

// Reassign overwrites amount and remarks in place. Last run wins.
func (a *AdditionalSalary) Reassign(amount decimal.Decimal, remarks string) error {
	if !a.IsDraft() {
		return ErrDraftNotEditable
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	a.Amount = amount
	a.Remarks = remarks
	a.OverwriteSalaryStructureAmount = true
	a.Touch()
	return nil
}

// Submit hands the draft to payroll
func (a *AdditionalSalary) Submit() error {
	if !a.IsDraft() {
		return ErrDraftNotEditable
	}
	a.DocStatus = DocStatusSubmitted
	a.Touch()
	return nil
}

func draftName(root shared.BaseAggregateRoot) string {
	return "ADS-" + strings.ToUpper(root.ID.String()[:8])
}
