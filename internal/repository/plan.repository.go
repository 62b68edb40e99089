package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/vtu-gateway/internal/model"
	"github.com/nimasrn/vtu-gateway/pkg/pg"
	"gorm.io/gorm"
)

var ErrPlanNotFound = errors.New("plan not found")

type PlanEntity struct {
	ID           int64  `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	ProviderCode string `db:"provider_code" gorm:"column:provider_code;not null;index"`
	Service      string `db:"service"       gorm:"column:service;not null;index"`
	Code         string `db:"code"          gorm:"column:code;not null"`
	Name         string `db:"name"          gorm:"column:name;not null"`
	Price        uint   `db:"price"         gorm:"column:price;not null"`
	Active       bool   `db:"active"        gorm:"column:active;not null"`
}

func (PlanEntity) TableName() string {
	return "plans"
}

func toPlanModel(e *PlanEntity) *model.Plan {
	if e == nil {
		return nil
	}
	return &model.Plan{
		ID:           e.ID,
		ProviderCode: e.ProviderCode,
		Service:      model.ServiceType(e.Service),
		Code:         e.Code,
		Name:         e.Name,
		Price:        e.Price,
		Active:       e.Active,
	}
}

type PlanRepository struct {
	*pg.DB
}

func NewPlanRepository(db *pg.DB) *PlanRepository {
	return &PlanRepository{
		db,
	}
}

// GetActive returns the plan only if it exists and is active; inactive
// plans are not purchasable.
func (r *PlanRepository) GetActive(ctx context.Context, id int64) (*model.Plan, error) {
	var entity PlanEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ? AND active = ?", id, true).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return toPlanModel(&entity), nil
}

func (r *PlanRepository) ListByService(ctx context.Context, svc model.ServiceType) ([]*model.Plan, error) {
	var entities []*PlanEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("service = ? AND active = ?", string(svc), true).
		Order("price ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	plans := make([]*model.Plan, len(entities))
	for i, e := range entities {
		plans[i] = toPlanModel(e)
	}
	return plans, nil
}
