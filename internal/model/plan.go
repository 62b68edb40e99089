package model

import "time"

// Plan is a catalog product (data bundle, cable package, exam pin).
// Price is authoritative on the platform side; the provider's own price
// is never trusted for billing.
type Plan struct {
	ID           int64       `json:"id"            db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	ProviderCode string      `json:"provider_code" db:"provider_code" gorm:"column:provider_code;not null;index"`
	Service      ServiceType `json:"service"       db:"service"       gorm:"column:service;not null;index"`
	Code         string      `json:"code"          db:"code"          gorm:"column:code;not null"` // opaque external plan code sent to the provider
	Name         string      `json:"name"          db:"name"          gorm:"column:name;not null"`
	Price        uint        `json:"price"         db:"price"         gorm:"column:price;not null"`
	Active       bool        `json:"active"        db:"active"        gorm:"column:active;not null"`
	CreatedAt    time.Time   `json:"created_at"    db:"created_at"    gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time   `json:"updated_at"    db:"updated_at"    gorm:"column:updated_at;autoUpdateTime"`
}

func (Plan) TableName() string { return "plans" }
