package repository

import (
	"time"

	"github.com/nimasrn/vtu-gateway/internal/model"
)

type TransactionEntity struct {
	ID            int64      `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	UserID        int64      `db:"user_id"        gorm:"column:user_id;not null;index"`
	WalletID      int64      `db:"wallet_id"      gorm:"column:wallet_id;not null;index"`
	Service       string     `db:"service"        gorm:"column:service;not null;index"`
	Amount        uint       `db:"amount"         gorm:"column:amount;not null"`
	Total         uint       `db:"total"          gorm:"column:total;not null"`
	Reference     string     `db:"reference"      gorm:"column:reference;not null;uniqueIndex"`
	PaymentMethod string     `db:"payment_method" gorm:"column:payment_method;not null;default:wallet"`
	Status        string     `db:"status"         gorm:"column:status;not null;index"`
	Destination   string     `db:"destination"    gorm:"column:destination;not null"`
	PlanCode      string     `db:"plan_code"      gorm:"column:plan_code"`
	ProviderCode  string     `db:"provider_code"  gorm:"column:provider_code;not null"`
	ErrorMessage  string     `db:"error_message"  gorm:"column:error_message"`
	RefundedAt    *time.Time `db:"refunded_at"    gorm:"column:refunded_at"`
	CreatedAt     time.Time  `db:"created_at"     gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `db:"updated_at"     gorm:"column:updated_at;autoUpdateTime"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		ID:            m.ID,
		UserID:        m.UserID,
		WalletID:      m.WalletID,
		Service:       string(m.Service),
		Amount:        m.Amount,
		Total:         m.Total,
		Reference:     m.Reference,
		PaymentMethod: m.PaymentMethod,
		Status:        string(m.Status),
		Destination:   m.Destination,
		PlanCode:      m.PlanCode,
		ProviderCode:  m.ProviderCode,
		ErrorMessage:  m.ErrorMessage,
		RefundedAt:    m.RefundedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:            e.ID,
		UserID:        e.UserID,
		WalletID:      e.WalletID,
		Service:       model.ServiceType(e.Service),
		Amount:        e.Amount,
		Total:         e.Total,
		Reference:     e.Reference,
		PaymentMethod: e.PaymentMethod,
		Status:        model.TransactionStatus(e.Status),
		Destination:   e.Destination,
		PlanCode:      e.PlanCode,
		ProviderCode:  e.ProviderCode,
		ErrorMessage:  e.ErrorMessage,
		RefundedAt:    e.RefundedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
