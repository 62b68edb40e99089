package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"
	"github.com/nimasrn/vtu-gateway/internal/billpay"
	"github.com/nimasrn/vtu-gateway/internal/model"
	"github.com/nimasrn/vtu-gateway/internal/services"
	xhttp "github.com/nimasrn/vtu-gateway/pkg/http"
)

type PurchaseService interface {
	PurchaseAirtime(ctx context.Context, req model.AirtimePurchaseRequest) (*model.PurchaseReceipt, error)
	PurchaseData(ctx context.Context, req model.DataPurchaseRequest) (*model.PurchaseReceipt, error)
	PurchaseCable(ctx context.Context, req model.CablePurchaseRequest) (*model.PurchaseReceipt, error)
	PurchaseElectricity(ctx context.Context, req model.ElectricityPurchaseRequest) (*model.PurchaseReceipt, error)
	PurchaseExamPin(ctx context.Context, req model.ExamPinPurchaseRequest) (*model.PurchaseReceipt, error)
	VerifyCableAccount(ctx context.Context, cableProvider, smartcardNumber string) (*billpay.Customer, error)
	VerifyElectricityMeter(ctx context.Context, disco, meterNumber, meterType string) (*billpay.Customer, error)
	TransactionStatus(ctx context.Context, reference string) (*model.Transaction, *billpay.Result, error)
}

type BillPaymentHandler struct {
	svc PurchaseService
}

func NewBillPaymentHandler(purchaseService PurchaseService) *BillPaymentHandler {
	return &BillPaymentHandler{
		svc: purchaseService,
	}
}

func RegisterBillPaymentRoutes(e *router.Group, h *BillPaymentHandler) {
	e.POST("/billpayment/airtime", h.PurchaseAirtime)
	e.POST("/billpayment/data", h.PurchaseData)
	e.POST("/billpayment/cable/verify", h.VerifyCableAccount)
	e.POST("/billpayment/cable/purchase", h.PurchaseCable)
	e.POST("/billpayment/electricity/verify", h.VerifyElectricityMeter)
	e.POST("/billpayment/electricity/purchase", h.PurchaseElectricity)
	e.POST("/billpayment/exampin/purchase", h.PurchaseExamPin)
	e.GET("/billpayment/transaction/{reference}", h.TransactionStatus)
}

type airtimePurchaseRequest struct {
	UserID       int64  `json:"user_id"`
	Network      string `json:"network"`
	Phone        string `json:"phone"`
	Amount       uint   `json:"amount"`
	AirtimeType  string `json:"airtime_type"`
	PortedNumber bool   `json:"ported_number"`
	Pin          string `json:"pin"`
}

type dataPurchaseRequest struct {
	UserID       int64  `json:"user_id"`
	Network      string `json:"network"`
	Phone        string `json:"phone"`
	PlanID       int64  `json:"plan_id"`
	PortedNumber bool   `json:"ported_number"`
	Pin          string `json:"pin"`
}

type cableVerifyRequest struct {
	CableProvider   string `json:"cable_provider"`
	SmartcardNumber string `json:"smartcard_number"`
}

type cablePurchaseRequest struct {
	UserID          int64  `json:"user_id"`
	CableProvider   string `json:"cable_provider"`
	SmartcardNumber string `json:"smartcard_number"`
	PlanID          int64  `json:"plan_id"`
	Pin             string `json:"pin"`
}

type electricityVerifyRequest struct {
	Disco       string `json:"disco"`
	MeterNumber string `json:"meter_number"`
	MeterType   string `json:"meter_type"`
}

type electricityPurchaseRequest struct {
	UserID      int64  `json:"user_id"`
	Disco       string `json:"disco"`
	MeterNumber string `json:"meter_number"`
	MeterType   string `json:"meter_type"`
	Amount      uint   `json:"amount"`
	Pin         string `json:"pin"`
}

type examPinPurchaseRequest struct {
	UserID       int64  `json:"user_id"`
	ExamProvider string `json:"exam_provider"`
	PlanID       int64  `json:"plan_id"`
	Quantity     int    `json:"quantity"`
	Pin          string `json:"pin"`
}

type transactionStatusResponse struct {
	Transaction *model.Transaction `json:"transaction"`
	Provider    *billpay.Result    `json:"provider,omitempty"`
}

func (h *BillPaymentHandler) PurchaseAirtime(ctx *xhttp.RequestCtx) {
	var req airtimePurchaseRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	receipt, err := h.svc.PurchaseAirtime(ctx, model.AirtimePurchaseRequest{
		UserID:       req.UserID,
		Network:      req.Network,
		Phone:        req.Phone,
		Amount:       req.Amount,
		AirtimeType:  req.AirtimeType,
		PortedNumber: req.PortedNumber,
		Pin:          req.Pin,
	})
	if err != nil {
		writePurchaseError(ctx, err)
		return
	}
	writeJSON(ctx, 200, receipt)
}

func (h *BillPaymentHandler) PurchaseData(ctx *xhttp.RequestCtx) {
	var req dataPurchaseRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	receipt, err := h.svc.PurchaseData(ctx, model.DataPurchaseRequest{
		UserID:       req.UserID,
		Network:      req.Network,
		Phone:        req.Phone,
		PlanID:       req.PlanID,
		PortedNumber: req.PortedNumber,
		Pin:          req.Pin,
	})
	if err != nil {
		writePurchaseError(ctx, err)
		return
	}
	writeJSON(ctx, 200, receipt)
}

func (h *BillPaymentHandler) VerifyCableAccount(ctx *xhttp.RequestCtx) {
	var req cableVerifyRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.CableProvider == "" || req.SmartcardNumber == "" {
		writeError(ctx, 400, "cable_provider and smartcard_number are required")
		return
	}
	customer, err := h.svc.VerifyCableAccount(ctx, req.CableProvider, req.SmartcardNumber)
	if err != nil {
		writePurchaseError(ctx, err)
		return
	}
	writeJSON(ctx, 200, customer)
}

func (h *BillPaymentHandler) PurchaseCable(ctx *xhttp.RequestCtx) {
	var req cablePurchaseRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	receipt, err := h.svc.PurchaseCable(ctx, model.CablePurchaseRequest{
		UserID:          req.UserID,
		CableProvider:   req.CableProvider,
		SmartcardNumber: req.SmartcardNumber,
		PlanID:          req.PlanID,
		Pin:             req.Pin,
	})
	if err != nil {
		writePurchaseError(ctx, err)
		return
	}
	writeJSON(ctx, 200, receipt)
}

func (h *BillPaymentHandler) VerifyElectricityMeter(ctx *xhttp.RequestCtx) {
	var req electricityVerifyRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.Disco == "" || req.MeterNumber == "" {
		writeError(ctx, 400, "disco and meter_number are required")
		return
	}
	customer, err := h.svc.VerifyElectricityMeter(ctx, req.Disco, req.MeterNumber, req.MeterType)
	if err != nil {
		writePurchaseError(ctx, err)
		return
	}
	writeJSON(ctx, 200, customer)
}

func (h *BillPaymentHandler) PurchaseElectricity(ctx *xhttp.RequestCtx) {
	var req electricityPurchaseRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	receipt, err := h.svc.PurchaseElectricity(ctx, model.ElectricityPurchaseRequest{
		UserID:      req.UserID,
		Disco:       req.Disco,
		MeterNumber: req.MeterNumber,
		MeterType:   req.MeterType,
		Amount:      req.Amount,
		Pin:         req.Pin,
	})
	if err != nil {
		writePurchaseError(ctx, err)
		return
	}
	writeJSON(ctx, 200, receipt)
}

func (h *BillPaymentHandler) PurchaseExamPin(ctx *xhttp.RequestCtx) {
	var req examPinPurchaseRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	receipt, err := h.svc.PurchaseExamPin(ctx, model.ExamPinPurchaseRequest{
		UserID:       req.UserID,
		ExamProvider: req.ExamProvider,
		PlanID:       req.PlanID,
		Quantity:     req.Quantity,
		Pin:          req.Pin,
	})
	if err != nil {
		writePurchaseError(ctx, err)
		return
	}
	writeJSON(ctx, 200, receipt)
}

func (h *BillPaymentHandler) TransactionStatus(ctx *xhttp.RequestCtx) {
	reference, _ := ctx.UserValue("reference").(string)
	if reference == "" {
		writeError(ctx, 400, "reference is required")
		return
	}
	txn, res, err := h.svc.TransactionStatus(ctx, reference)
	if err != nil {
		writePurchaseError(ctx, err)
		return
	}
	writeJSON(ctx, 200, transactionStatusResponse{Transaction: txn, Provider: res})
}

// writePurchaseError maps service errors onto HTTP statuses. Business
// declines and caller mistakes are 4xx; provider faults surface as 502
// so upstream retry policies can tell them apart.
func writePurchaseError(ctx *xhttp.RequestCtx, err error) {
	var failed *services.PurchaseFailedError
	if errors.As(err, &failed) {
		writeJSON(ctx, 400, errorEnvelope{
			Success: false,
			Message: failed.Reason,
			Data:    map[string]string{"reference": failed.Reference},
		})
		return
	}

	var provider *services.ProviderError
	if errors.As(err, &provider) {
		writeError(ctx, 502, "provider request failed")
		return
	}

	switch {
	case errors.Is(err, services.ErrIncorrectPin),
		errors.Is(err, services.ErrPinNotSet),
		errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, model.ErrUnknownNetwork):
		writeError(ctx, 400, err.Error())
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrWalletNotFound),
		errors.Is(err, services.ErrPlanNotFound),
		errors.Is(err, services.ErrTransactionNotFound):
		writeError(ctx, 404, err.Error())
	case errors.Is(err, billpay.ErrNoProvider):
		writeError(ctx, 503, err.Error())
	default:
		var validation model.ValidationError
		if errors.As(err, &validation) {
			writeError(ctx, 400, err.Error())
			return
		}
		writeError(ctx, 500, "internal error")
	}
}
