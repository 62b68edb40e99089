package repository

import (
	"time"

	"github.com/nimasrn/vtu-gateway/internal/model"
)

type WalletEntity struct {
	ID                int64      `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	UserID            int64      `db:"user_id"             gorm:"column:user_id;not null;uniqueIndex"`
	Balance           uint       `db:"balance"             gorm:"column:balance;not null;default:0"`
	Currency          string     `db:"currency"            gorm:"column:currency;not null;default:NGN"`
	LastTransactionAt *time.Time `db:"last_transaction_at" gorm:"column:last_transaction_at"`
	CreatedAt         time.Time  `db:"created_at"          gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `db:"updated_at"          gorm:"column:updated_at;autoUpdateTime"`
}

func (WalletEntity) TableName() string {
	return "wallets"
}

func toWalletEntity(m *model.Wallet) *WalletEntity {
	if m == nil {
		return nil
	}
	return &WalletEntity{
		ID:                m.ID,
		UserID:            m.UserID,
		Balance:           m.Balance,
		Currency:          m.Currency,
		LastTransactionAt: m.LastTransactionAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toWalletModel(e *WalletEntity) *model.Wallet {
	if e == nil {
		return nil
	}
	return &model.Wallet{
		ID:                e.ID,
		UserID:            e.UserID,
		Balance:           e.Balance,
		Currency:          e.Currency,
		LastTransactionAt: e.LastTransactionAt,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}
