package model

import (
	"strings"
	"time"
)

// Provider is an administrator-managed bill-payment provider
// configuration. The purchase path only ever reads these rows; the
// admin surface (out of scope here) is the only writer.
type Provider struct {
	ID        int64     `json:"id"         db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	Code      string    `json:"code"       db:"code"       gorm:"column:code;not null;uniqueIndex"`
	Name      string    `json:"name"       db:"name"       gorm:"column:name;not null"`
	BaseURL   string    `json:"base_url"   db:"base_url"   gorm:"column:base_url;not null"`
	APIKey    string    `json:"-"          db:"api_key"    gorm:"column:api_key"`
	Priority  int       `json:"priority"   db:"priority"   gorm:"column:priority;not null;default:100"` // lower = preferred
	Active    bool      `json:"active"     db:"active"     gorm:"column:active;not null"`
	Services  string    `json:"services"   db:"services"   gorm:"column:services;not null"` // comma-separated ServiceType values
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Provider) TableName() string { return "providers" }

// Supports reports whether the provider is configured for the given
// service type.
func (p *Provider) Supports(svc ServiceType) bool {
	for _, s := range strings.Split(p.Services, ",") {
		if ServiceType(strings.TrimSpace(s)) == svc {
			return true
		}
	}
	return false
}
