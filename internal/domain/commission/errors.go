package commission

import "github.com/erp/commission/internal/domain/shared"

var (
	// ErrDraftAlreadyExists is returned by the draft store when a second draft
	// for the same employee, component and payroll date would be created
	ErrDraftAlreadyExists = shared.NewDomainError("DRAFT_ALREADY_EXISTS", "A draft additional salary already exists for this employee, component and payroll date")

	// ErrDraftNotEditable is returned when mutating a record that has left draft status
	ErrDraftNotEditable = shared.NewDomainError("DRAFT_NOT_EDITABLE", "Additional salary is no longer a draft")

	// ErrInvalidAmount is returned for non-positive commission amounts
	ErrInvalidAmount = shared.NewDomainError("INVALID_AMOUNT", "Commission amount must be positive")

	// ErrEmployeeRequired is returned when a draft is built without an employee
	ErrEmployeeRequired = shared.NewDomainError("EMPLOYEE_REQUIRED", "Employee is required")

	// ErrInvalidPeriod is returned when an explicit period ends before it starts
	ErrInvalidPeriod = shared.NewDomainError("INVALID_PERIOD", "Period end is before period start")

	// ErrRunInProgress is returned when another run already holds the run key
	ErrRunInProgress = shared.NewDomainError("RUN_IN_PROGRESS", "A commission run for this period is already in progress")
)
