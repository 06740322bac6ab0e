package models

import (
	"time"

	"github.com/erp/commission/internal/domain/commission"
	"github.com/shopspring/decimal"
)

// SettingsRowID is the primary key of the single settings row
const SettingsRowID = 1

// CommissionSettingsModel is the single-row commission settings record
type CommissionSettingsModel struct {
	ID           uint                  `gorm:"primaryKey"`
	Enabled      bool                  `gorm:"not null;default:false"`
	ForceRun     bool                  `gorm:"not null;default:false"`
	Component    string                `gorm:"type:varchar(140)"`
	RunKeySuffix string                `gorm:"type:varchar(60)"`
	Period       string                `gorm:"type:varchar(20)"`
	Slabs        []CommissionSlabModel `gorm:"foreignKey:SettingsID;constraint:OnDelete:CASCADE"`
	UpdatedAt    time.Time
}

// TableName returns the table name for GORM
func (CommissionSettingsModel) TableName() string {
	return "commission_settings"
}

// CommissionSlabModel is one configured bracket, kept in entry order by Idx
type CommissionSlabModel struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"`
	SettingsID  uint            `gorm:"not null;index"`
	Idx         int             `gorm:"not null"`
	LimitAmount decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Rate        decimal.Decimal `gorm:"type:decimal(9,4);not null"`
}

// TableName returns the table name for GORM
func (CommissionSlabModel) TableName() string {
	return "commission_slabs"
}

// ToDomain converts the record to domain settings. Slabs must be loaded in Idx order.
func (m *CommissionSettingsModel) ToDomain() *commission.Settings {
	rows := make([]commission.SlabRow, 0, len(m.Slabs))
	for _, s := range m.Slabs {
		rows = append(rows, commission.SlabRow{LimitAmount: s.LimitAmount, Rate: s.Rate})
	}
	return &commission.Settings{
		Enabled:      m.Enabled,
		ForceRun:     m.ForceRun,
		Component:    m.Component,
		RunKeySuffix: m.RunKeySuffix,
		Period:       commission.PeriodSelector(m.Period),
		SlabRows:     rows,
	}
}

// CommissionSettingsModelFromDomain creates the settings row with its slabs
func CommissionSettingsModelFromDomain(s commission.Settings) *CommissionSettingsModel {
	slabs := make([]CommissionSlabModel, 0, len(s.SlabRows))
	for i, row := range s.SlabRows {
		slabs = append(slabs, CommissionSlabModel{
			SettingsID:  SettingsRowID,
			Idx:         i,
			LimitAmount: row.LimitAmount,
			Rate:        row.Rate,
		})
	}
	return &CommissionSettingsModel{
		ID:           SettingsRowID,
		Enabled:      s.Enabled,
		ForceRun:     s.ForceRun,
		Component:    s.Component,
		RunKeySuffix: s.RunKeySuffix,
		Period:       string(s.Period),
		Slabs:        slabs,
	}
}
