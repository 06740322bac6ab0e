package persistence

import (
	"context"
	"errors"

	"github.com/erp/commission/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormEmployeeDirectory implements commission.EmployeeDirectory
type GormEmployeeDirectory struct {
	db *gorm.DB
}

// NewGormEmployeeDirectory creates a new GormEmployeeDirectory
func NewGormEmployeeDirectory(db *gorm.DB) *GormEmployeeDirectory {
	return &GormEmployeeDirectory{db: db}
}

// EmployeeFor returns the employee linked to salesPerson. Unknown salespersons
// and salespersons without a link both yield "".
func (d *GormEmployeeDirectory) EmployeeFor(ctx context.Context, salesPerson string) (string, error) {
	var model models.SalesPersonModel
	err := d.db.WithContext(ctx).
		Select("name", "employee").
		Where("name = ?", salesPerson).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	if model.Employee == nil {
		return "", nil
	}
	return *model.Employee, nil
}
