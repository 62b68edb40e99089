package repository

import (
	"context"

	"github.com/nimasrn/vtu-gateway/internal/model"
	"github.com/nimasrn/vtu-gateway/pkg/pg"
)

type ProviderEntity struct {
	ID       int64  `db:"id"       gorm:"primaryKey;autoIncrement;column:id"`
	Code     string `db:"code"     gorm:"column:code;not null;uniqueIndex"`
	Name     string `db:"name"     gorm:"column:name;not null"`
	BaseURL  string `db:"base_url" gorm:"column:base_url;not null"`
	APIKey   string `db:"api_key"  gorm:"column:api_key"`
	Priority int    `db:"priority" gorm:"column:priority;not null;default:100"`
	Active   bool   `db:"active"   gorm:"column:active;not null"`
	Services string `db:"services" gorm:"column:services;not null"`
}

func (ProviderEntity) TableName() string {
	return "providers"
}

func toProviderModel(e *ProviderEntity) *model.Provider {
	if e == nil {
		return nil
	}
	return &model.Provider{
		ID:       e.ID,
		Code:     e.Code,
		Name:     e.Name,
		BaseURL:  e.BaseURL,
		APIKey:   e.APIKey,
		Priority: e.Priority,
		Active:   e.Active,
		Services: e.Services,
	}
}

type ProviderRepository struct {
	*pg.DB
}

func NewProviderRepository(db *pg.DB) *ProviderRepository {
	return &ProviderRepository{
		db,
	}
}

// ListActive returns active provider configurations in priority order
// (lowest number first). The registry is the only consumer.
func (r *ProviderRepository) ListActive(ctx context.Context) ([]*model.Provider, error) {
	var entities []*ProviderEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("active = ?", true).
		Order("priority ASC, code ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	providers := make([]*model.Provider, len(entities))
	for i, e := range entities {
		providers[i] = toProviderModel(e)
	}
	return providers, nil
}
