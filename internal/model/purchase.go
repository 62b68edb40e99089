package model

import (
	"encoding/json"
)

// ValidationError marks caller mistakes so transports can map them to
// a 4xx without listing every message.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

var (
	ErrInvalidPhone  = ValidationError("invalid phone number")
	ErrInvalidPin    = ValidationError("transaction PIN must be 4 digits")
	ErrInvalidAmount = ValidationError("amount must be greater than zero")
)

// MeterType for electricity purchases.
const (
	MeterTypePrepaid  = "prepaid"
	MeterTypePostpaid = "postpaid"
)

// AirtimePurchaseRequest is the input for an airtime top-up.
type AirtimePurchaseRequest struct {
	UserID       int64
	Network      string
	Phone        string
	Amount       uint
	AirtimeType  string // "VTU" or "awuf4U"-style promo, provider specific; defaults to "VTU"
	PortedNumber bool
	Pin          string
}

func (p AirtimePurchaseRequest) Validate() error {
	if p.UserID == 0 {
		return ValidationError("user_id is required")
	}
	if p.Network == "" {
		return ValidationError("network is required")
	}
	if !validPhone(p.Phone) {
		return ErrInvalidPhone
	}
	if p.Amount == 0 {
		return ErrInvalidAmount
	}
	return validatePinFormat(p.Pin)
}

// DataPurchaseRequest is the input for a data bundle purchase. The
// price comes from the stored plan, never from the client.
type DataPurchaseRequest struct {
	UserID       int64
	Network      string
	Phone        string
	PlanID       int64
	PortedNumber bool
	Pin          string
}

func (p DataPurchaseRequest) Validate() error {
	if p.UserID == 0 {
		return ValidationError("user_id is required")
	}
	if p.Network == "" {
		return ValidationError("network is required")
	}
	if !validPhone(p.Phone) {
		return ErrInvalidPhone
	}
	if p.PlanID == 0 {
		return ValidationError("plan is required")
	}
	return validatePinFormat(p.Pin)
}

// CablePurchaseRequest is the input for a cable TV subscription.
type CablePurchaseRequest struct {
	UserID          int64
	CableProvider   string // e.g. "dstv", "gotv", "startimes"
	SmartcardNumber string
	PlanID          int64
	Pin             string
}

func (p CablePurchaseRequest) Validate() error {
	if p.UserID == 0 {
		return ValidationError("user_id is required")
	}
	if p.CableProvider == "" {
		return ValidationError("cable provider is required")
	}
	if p.SmartcardNumber == "" {
		return ValidationError("smartcard number is required")
	}
	if p.PlanID == 0 {
		return ValidationError("plan is required")
	}
	return validatePinFormat(p.Pin)
}

// ElectricityPurchaseRequest is the input for an electricity token or
// postpaid bill payment.
type ElectricityPurchaseRequest struct {
	UserID      int64
	Disco       string // distribution company code, e.g. "ikeja-electric"
	MeterNumber string
	MeterType   string
	Amount      uint
	Pin         string
}

func (p ElectricityPurchaseRequest) Validate() error {
	if p.UserID == 0 {
		return ValidationError("user_id is required")
	}
	if p.Disco == "" {
		return ValidationError("electricity provider is required")
	}
	if p.MeterNumber == "" {
		return ValidationError("meter number is required")
	}
	if p.MeterType != MeterTypePrepaid && p.MeterType != MeterTypePostpaid {
		return ValidationError("meter type must be prepaid or postpaid")
	}
	if p.Amount == 0 {
		return ErrInvalidAmount
	}
	return validatePinFormat(p.Pin)
}

// ExamPinPurchaseRequest is the input for exam scratch-card pins
// (WAEC, NECO, JAMB).
type ExamPinPurchaseRequest struct {
	UserID       int64
	ExamProvider string
	PlanID       int64
	Quantity     int
	Pin          string
}

func (p ExamPinPurchaseRequest) Validate() error {
	if p.UserID == 0 {
		return ValidationError("user_id is required")
	}
	if p.ExamProvider == "" {
		return ValidationError("exam provider is required")
	}
	if p.PlanID == 0 {
		return ValidationError("plan is required")
	}
	if p.Quantity < 1 || p.Quantity > 10 {
		return ValidationError("quantity must be between 1 and 10")
	}
	return validatePinFormat(p.Pin)
}

// PurchaseReceipt is returned to the caller on a settled purchase: the
// ledger row plus whatever payload the provider returned (token codes,
// pins, units).
type PurchaseReceipt struct {
	Transaction *Transaction    `json:"transaction"`
	Provider    json.RawMessage `json:"provider_response,omitempty"`
}

func validatePinFormat(pin string) error {
	if len(pin) != 4 {
		return ErrInvalidPin
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return ErrInvalidPin
		}
	}
	return nil
}

// validPhone accepts Nigerian MSISDNs in local (080...) or
// international (+23480..., 23480...) form.
func validPhone(phone string) bool {
	digits := phone
	switch {
	case len(phone) == 14 && phone[:4] == "+234":
		digits = "0" + phone[4:]
	case len(phone) == 13 && phone[:3] == "234":
		digits = "0" + phone[3:]
	}
	if len(digits) != 11 || digits[0] != '0' {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
