package models

import (
	"time"

	"github.com/erp/commission/internal/domain/commission"
	"github.com/shopspring/decimal"
)

// AdditionalSalaryModel is the persistence model for the AdditionalSalary
// aggregate. The partial unique index allows one draft per key while any
// number of submitted records may share it.
type AdditionalSalaryModel struct {
	AggregateModel
	Name                           string          `gorm:"type:varchar(140);not null;uniqueIndex"`
	Employee                       string          `gorm:"type:varchar(140);not null;uniqueIndex:idx_additional_salaries_draft_key,where:docstatus = 0;index"`
	SalaryComponent                string          `gorm:"type:varchar(140);not null;uniqueIndex:idx_additional_salaries_draft_key,where:docstatus = 0"`
	PayrollDate                    time.Time       `gorm:"type:date;not null;uniqueIndex:idx_additional_salaries_draft_key,where:docstatus = 0;index"`
	Amount                         decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Remarks                        string          `gorm:"type:text"`
	OverwriteSalaryStructureAmount bool            `gorm:"not null;default:false"`
	DocStatus                      int             `gorm:"column:docstatus;not null;default:0"`
}

// TableName returns the table name for GORM
func (AdditionalSalaryModel) TableName() string {
	return "additional_salaries"
}

// ToDomain converts the persistence model to the domain aggregate
func (m *AdditionalSalaryModel) ToDomain() *commission.AdditionalSalary {
	return &commission.AdditionalSalary{
		BaseAggregateRoot:              m.ToDomainAggregateRoot(),
		Name:                           m.Name,
		Employee:                       m.Employee,
		SalaryComponent:                m.SalaryComponent,
		PayrollDate:                    CalendarDate(m.PayrollDate),
		Amount:                         m.Amount,
		Remarks:                        m.Remarks,
		OverwriteSalaryStructureAmount: m.OverwriteSalaryStructureAmount,
		DocStatus:                      commission.DocStatus(m.DocStatus),
	}
}

// AdditionalSalaryModelFromDomain creates a persistence model from the domain aggregate
func AdditionalSalaryModelFromDomain(a *commission.AdditionalSalary) *AdditionalSalaryModel {
	m := &AdditionalSalaryModel{
		Name:                           a.Name,
		Employee:                       a.Employee,
		SalaryComponent:                a.SalaryComponent,
		PayrollDate:                    CalendarDate(a.PayrollDate),
		Amount:                         a.Amount,
		Remarks:                        a.Remarks,
		OverwriteSalaryStructureAmount: a.OverwriteSalaryStructureAmount,
		DocStatus:                      int(a.DocStatus),
	}
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	return m
}
