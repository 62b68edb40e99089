package model

import "time"

// User carries the identity fields the purchase core needs. Account
// management lives elsewhere; this core only reads the PIN hash.
type User struct {
	ID        int64     `json:"id"         db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	Email     string    `json:"email"      db:"email"      gorm:"column:email;not null;uniqueIndex"`
	PinHash   string    `json:"-"          db:"pin_hash"   gorm:"column:pin_hash"` // empty when the user never set a transaction PIN
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (User) TableName() string { return "users" }
