package model

import "time"

// Wallet is a user's prepaid balance. Amounts are stored in minor
// currency units (kobo).
type Wallet struct {
	ID                int64      `json:"id"                  db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	UserID            int64      `json:"user_id"             db:"user_id"             gorm:"column:user_id;not null;uniqueIndex"`
	Balance           uint       `json:"balance"             db:"balance"             gorm:"column:balance;not null;default:0"`
	Currency          string     `json:"currency"            db:"currency"            gorm:"column:currency;not null;default:NGN"`
	LastTransactionAt *time.Time `json:"last_transaction_at" db:"last_transaction_at" gorm:"column:last_transaction_at"`
	CreatedAt         time.Time  `json:"created_at"          db:"created_at"          gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `json:"updated_at"          db:"updated_at"          gorm:"column:updated_at;autoUpdateTime"`
}

func (Wallet) TableName() string { return "wallets" }
