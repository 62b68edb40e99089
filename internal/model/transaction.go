package model

import "time"

// ServiceType identifies which bill-payment product a transaction is for.
type ServiceType string

const (
	ServiceAirtime     ServiceType = "airtime"
	ServiceData        ServiceType = "data"
	ServiceCable       ServiceType = "cable"
	ServiceElectricity ServiceType = "electricity"
	ServiceExamPin     ServiceType = "exam-pin"
)

func (s ServiceType) Valid() bool {
	switch s {
	case ServiceAirtime, ServiceData, ServiceCable, ServiceElectricity, ServiceExamPin:
		return true
	}
	return false
}

// TransactionStatus is the lifecycle state of a purchase attempt.
// A transaction moves pending -> successful or pending -> failed and
// never changes again. A refunded failure keeps status "failed"; the
// compensating credit is recorded in RefundedAt.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusSuccessful TransactionStatus = "successful"
	StatusFailed     TransactionStatus = "failed"
)

// Transaction is the append-only audit record of one purchase attempt.
// Amount and Total are fixed at creation; only Status, ErrorMessage,
// RefundedAt and UpdatedAt mutate afterwards.
type Transaction struct {
	ID            int64             `json:"id"             db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	UserID        int64             `json:"user_id"        db:"user_id"        gorm:"column:user_id;not null;index"`
	WalletID      int64             `json:"wallet_id"      db:"wallet_id"      gorm:"column:wallet_id;not null;index"`
	Service       ServiceType       `json:"service"        db:"service"        gorm:"column:service;not null;index"`
	Amount        uint              `json:"amount"         db:"amount"         gorm:"column:amount;not null"`
	Total         uint              `json:"total"          db:"total"          gorm:"column:total;not null"` // amount + fee, the value actually debited
	Reference     string            `json:"reference"      db:"reference"      gorm:"column:reference;not null;uniqueIndex"`
	PaymentMethod string            `json:"payment_method" db:"payment_method" gorm:"column:payment_method;not null;default:wallet"`
	Status        TransactionStatus `json:"status"         db:"status"         gorm:"column:status;not null;index"`
	Destination   string            `json:"destination"    db:"destination"    gorm:"column:destination;not null"` // phone, smartcard or meter number
	PlanCode      string            `json:"plan_code,omitempty"     db:"plan_code"     gorm:"column:plan_code"`
	ProviderCode  string            `json:"provider_code"  db:"provider_code"  gorm:"column:provider_code;not null"`
	ErrorMessage  string            `json:"error_message,omitempty" db:"error_message" gorm:"column:error_message"`
	RefundedAt    *time.Time        `json:"refunded_at,omitempty"   db:"refunded_at"   gorm:"column:refunded_at"`
	CreatedAt     time.Time         `json:"created_at"     db:"created_at"     gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `json:"updated_at"     db:"updated_at"     gorm:"column:updated_at;autoUpdateTime"`
}

func (Transaction) TableName() string { return "transactions" }

// TransactionFilter controls List queries.
type TransactionFilter struct {
	UserID    *int64
	Service   *ServiceType
	Statuses  []TransactionStatus
	Reference *string
	From      *time.Time
	To        *time.Time
	Limit     int // default 50
	Offset    int
	Desc      bool // order by created_at
}
