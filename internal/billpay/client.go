package billpay

import (
	"context"
	"errors"
)

var (
	ErrNoProvider = errors.New("no provider configured for service")
)

// AirtimeRequest is the normalized payload sent to a provider for an
// airtime top-up. Network is already canonical and Amount is in minor
// units; Reference is the platform-generated unique attempt id.
type AirtimeRequest struct {
	Network      string `json:"network"`
	Phone        string `json:"phone"`
	Amount       uint   `json:"amount"`
	AirtimeType  string `json:"airtime_type,omitempty"`
	PortedNumber bool   `json:"ported_number"`
	Reference    string `json:"reference"`
}

type DataRequest struct {
	Network      string `json:"network"`
	Phone        string `json:"phone"`
	PlanCode     string `json:"plan_code"`
	PortedNumber bool   `json:"ported_number"`
	Reference    string `json:"reference"`
}

type CableRequest struct {
	CableProvider   string `json:"cable_provider"`
	SmartcardNumber string `json:"smartcard_number"`
	PlanCode        string `json:"plan_code"`
	Amount          uint   `json:"amount"`
	Reference       string `json:"reference"`
}

type ElectricityRequest struct {
	Disco       string `json:"disco"`
	MeterNumber string `json:"meter_number"`
	MeterType   string `json:"meter_type"`
	Amount      uint   `json:"amount"`
	Reference   string `json:"reference"`
}

type ExamPinRequest struct {
	ExamProvider string `json:"exam_provider"`
	PlanCode     string `json:"plan_code"`
	Quantity     int    `json:"quantity"`
	Amount       uint   `json:"amount"`
	Reference    string `json:"reference"`
}

// Customer is the normalized payload of a verification call.
type Customer struct {
	Name    string `json:"customer_name"`
	Address string `json:"customer_address,omitempty"`
}

type Network struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Biller is a cable, electricity or exam provider as listed upstream.
type Biller struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CablePlan struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Price uint   `json:"price"`
}

// Client is the capability set a bill-payment provider exposes. Purchase
// and status calls return a Result: a transport fault (timeout, refused
// connection, malformed response) comes back as a Go error, a provider
// that answered "no" comes back as Result{Success: false}. Callers must
// treat both as not-confirmed-success.
type Client interface {
	Code() string

	PurchaseAirtime(ctx context.Context, req AirtimeRequest) (*Result, error)
	PurchaseData(ctx context.Context, req DataRequest) (*Result, error)
	PurchaseCable(ctx context.Context, req CableRequest) (*Result, error)
	PurchaseElectricity(ctx context.Context, req ElectricityRequest) (*Result, error)
	PurchaseExamPin(ctx context.Context, req ExamPinRequest) (*Result, error)

	VerifyCableAccount(ctx context.Context, cableProvider, smartcardNumber string) (*Customer, error)
	VerifyElectricityMeter(ctx context.Context, disco, meterNumber, meterType string) (*Customer, error)

	TransactionStatus(ctx context.Context, reference string) (*Result, error)
	Balance(ctx context.Context) (*Result, error)

	Networks(ctx context.Context) ([]Network, error)
	CableProviders(ctx context.Context) ([]Biller, error)
	ElectricityProviders(ctx context.Context) ([]Biller, error)
	ExamProviders(ctx context.Context) ([]Biller, error)
	CablePlans(ctx context.Context, cableProvider string) ([]CablePlan, error)
}
