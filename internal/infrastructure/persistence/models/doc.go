// Package models contains GORM persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Structure:
//   - base.go: BaseModel and AggregateModel shared by owned tables
//   - ledger.go: host ledger tables read by the commission run (invoices,
//     sales team rows, payments, salespersons)
//   - additional_salary.go: payroll drafts written by the run
//   - audit.go: persisted run traces
//   - settings.go: commission settings and slab rows
package models
