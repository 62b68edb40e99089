package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/vtu-gateway/internal/billpay"
	"github.com/nimasrn/vtu-gateway/internal/model"
	"github.com/nimasrn/vtu-gateway/internal/refunds"
	"github.com/nimasrn/vtu-gateway/internal/repository"
	"github.com/nimasrn/vtu-gateway/pkg/logger"
	"github.com/nimasrn/vtu-gateway/pkg/prom"
)

type WalletRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*model.Wallet, error)
	Debit(ctx context.Context, userID int64, amount uint) error
	Credit(ctx context.Context, userID int64, amount uint) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	UpdateStatus(ctx context.Context, id int64, status model.TransactionStatus, errorMessage string) error
	MarkRefunded(ctx context.Context, id int64) (bool, error)
	GetByReference(ctx context.Context, reference string) (*model.Transaction, error)
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
}

type PlanRepository interface {
	GetActive(ctx context.Context, id int64) (*model.Plan, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// ProviderSelector is the slice of the billpay registry the
// orchestrator needs.
type ProviderSelector interface {
	PreferredFor(service model.ServiceType) (billpay.Client, error)
	Get(code string) (billpay.Client, bool)
}

// RefundPublisher is the fallback path when the in-flow compensating
// credit itself fails.
type RefundPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type PurchaseOptions struct {
	CallTimeout     time.Duration
	AllowDefaultPin bool
	ElectricityFee  uint // convenience fee added to electricity purchases, minor units
}

// PurchaseService drives a purchase attempt end to end: validate,
// verify PIN, reserve funds, call the provider, settle or compensate.
type PurchaseService struct {
	wallets         WalletRepository
	transactions    TransactionRepository
	plans           PlanRepository
	users           UserRepository
	registry        ProviderSelector
	refundQueue     RefundPublisher
	callTimeout     time.Duration
	allowDefaultPin bool
	electricityFee  uint
}

func NewPurchaseService(
	wallets WalletRepository,
	transactions TransactionRepository,
	plans PlanRepository,
	users UserRepository,
	registry ProviderSelector,
	refundQueue RefundPublisher,
	opts PurchaseOptions,
) *PurchaseService {
	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &PurchaseService{
		wallets:         wallets,
		transactions:    transactions,
		plans:           plans,
		users:           users,
		registry:        registry,
		refundQueue:     refundQueue,
		callTimeout:     callTimeout,
		allowDefaultPin: opts.AllowDefaultPin,
		electricityFee:  opts.ElectricityFee,
	}
}

func (s *PurchaseService) PurchaseAirtime(ctx context.Context, req model.AirtimePurchaseRequest) (*model.PurchaseReceipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.verifyPin(ctx, req.UserID, req.Pin); err != nil {
		return nil, err
	}
	network, err := model.NormalizeNetwork(req.Network)
	if err != nil {
		return nil, err
	}
	client, err := s.registry.PreferredFor(model.ServiceAirtime)
	if err != nil {
		return nil, err
	}

	airtimeType := req.AirtimeType
	if airtimeType == "" {
		airtimeType = "VTU"
	}

	return s.execute(ctx, purchaseArgs{
		userID:      req.UserID,
		service:     model.ServiceAirtime,
		amount:      req.Amount,
		total:       req.Amount,
		destination: req.Phone,
		client:      client,
	}, func(ctx context.Context, reference string) (*billpay.Result, error) {
		return client.PurchaseAirtime(ctx, billpay.AirtimeRequest{
			Network:      network,
			Phone:        req.Phone,
			Amount:       req.Amount,
			AirtimeType:  airtimeType,
			PortedNumber: req.PortedNumber,
			Reference:    reference,
		})
	})
}

func (s *PurchaseService) PurchaseData(ctx context.Context, req model.DataPurchaseRequest) (*model.PurchaseReceipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.verifyPin(ctx, req.UserID, req.Pin); err != nil {
		return nil, err
	}
	network, err := model.NormalizeNetwork(req.Network)
	if err != nil {
		return nil, err
	}
	plan, err := s.plan(ctx, req.PlanID, model.ServiceData)
	if err != nil {
		return nil, err
	}
	client, err := s.clientForPlan(plan, model.ServiceData)
	if err != nil {
		return nil, err
	}

	return s.execute(ctx, purchaseArgs{
		userID:      req.UserID,
		service:     model.ServiceData,
		amount:      plan.Price,
		total:       plan.Price,
		destination: req.Phone,
		planCode:    plan.Code,
		client:      client,
	}, func(ctx context.Context, reference string) (*billpay.Result, error) {
		return client.PurchaseData(ctx, billpay.DataRequest{
			Network:      network,
			Phone:        req.Phone,
			PlanCode:     plan.Code,
			PortedNumber: req.PortedNumber,
			Reference:    reference,
		})
	})
}

func (s *PurchaseService) PurchaseCable(ctx context.Context, req model.CablePurchaseRequest) (*model.PurchaseReceipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.verifyPin(ctx, req.UserID, req.Pin); err != nil {
		return nil, err
	}
	plan, err := s.plan(ctx, req.PlanID, model.ServiceCable)
	if err != nil {
		return nil, err
	}
	client, err := s.clientForPlan(plan, model.ServiceCable)
	if err != nil {
		return nil, err
	}

	return s.execute(ctx, purchaseArgs{
		userID:      req.UserID,
		service:     model.ServiceCable,
		amount:      plan.Price,
		total:       plan.Price,
		destination: req.SmartcardNumber,
		planCode:    plan.Code,
		client:      client,
	}, func(ctx context.Context, reference string) (*billpay.Result, error) {
		return client.PurchaseCable(ctx, billpay.CableRequest{
			CableProvider:   req.CableProvider,
			SmartcardNumber: req.SmartcardNumber,
			PlanCode:        plan.Code,
			Amount:          plan.Price,
			Reference:       reference,
		})
	})
}

func (s *PurchaseService) PurchaseElectricity(ctx context.Context, req model.ElectricityPurchaseRequest) (*model.PurchaseReceipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.verifyPin(ctx, req.UserID, req.Pin); err != nil {
		return nil, err
	}
	client, err := s.registry.PreferredFor(model.ServiceElectricity)
	if err != nil {
		return nil, err
	}

	return s.execute(ctx, purchaseArgs{
		userID:      req.UserID,
		service:     model.ServiceElectricity,
		amount:      req.Amount,
		total:       req.Amount + s.electricityFee,
		destination: req.MeterNumber,
		client:      client,
	}, func(ctx context.Context, reference string) (*billpay.Result, error) {
		return client.PurchaseElectricity(ctx, billpay.ElectricityRequest{
			Disco:       req.Disco,
			MeterNumber: req.MeterNumber,
			MeterType:   req.MeterType,
			Amount:      req.Amount,
			Reference:   reference,
		})
	})
}

func (s *PurchaseService) PurchaseExamPin(ctx context.Context, req model.ExamPinPurchaseRequest) (*model.PurchaseReceipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.verifyPin(ctx, req.UserID, req.Pin); err != nil {
		return nil, err
	}
	plan, err := s.plan(ctx, req.PlanID, model.ServiceExamPin)
	if err != nil {
		return nil, err
	}
	client, err := s.clientForPlan(plan, model.ServiceExamPin)
	if err != nil {
		return nil, err
	}

	total := plan.Price * uint(req.Quantity)

	return s.execute(ctx, purchaseArgs{
		userID:      req.UserID,
		service:     model.ServiceExamPin,
		amount:      total,
		total:       total,
		destination: req.ExamProvider,
		planCode:    plan.Code,
		client:      client,
	}, func(ctx context.Context, reference string) (*billpay.Result, error) {
		return client.PurchaseExamPin(ctx, billpay.ExamPinRequest{
			ExamProvider: req.ExamProvider,
			PlanCode:     plan.Code,
			Quantity:     req.Quantity,
			Amount:       total,
			Reference:    reference,
		})
	})
}

// VerifyCableAccount never touches the wallet.
func (s *PurchaseService) VerifyCableAccount(ctx context.Context, cableProvider, smartcardNumber string) (*billpay.Customer, error) {
	client, err := s.registry.PreferredFor(model.ServiceCable)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return client.VerifyCableAccount(ctx, cableProvider, smartcardNumber)
}

// VerifyElectricityMeter never touches the wallet.
func (s *PurchaseService) VerifyElectricityMeter(ctx context.Context, disco, meterNumber, meterType string) (*billpay.Customer, error) {
	client, err := s.registry.PreferredFor(model.ServiceElectricity)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return client.VerifyElectricityMeter(ctx, disco, meterNumber, meterType)
}

// TransactionStatus returns the local ledger row plus a live status
// query against the provider that handled the purchase. When that
// provider is no longer configured the currently preferred one for the
// service is asked instead.
func (s *PurchaseService) TransactionStatus(ctx context.Context, reference string) (*model.Transaction, *billpay.Result, error) {
	txn, err := s.transactions.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, nil, ErrTransactionNotFound
		}
		return nil, nil, err
	}

	client, ok := s.registry.Get(txn.ProviderCode)
	if !ok {
		client, err = s.registry.PreferredFor(txn.Service)
		if err != nil {
			// No provider to ask; the local row is still an answer.
			return txn, nil, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	res, err := client.TransactionStatus(ctx, reference)
	if err != nil {
		logger.Warn("provider status query failed", "reference", reference, "provider", client.Code(), "error", err)
		return txn, nil, nil
	}
	return txn, res, nil
}

func (s *PurchaseService) ListTransactions(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	return s.transactions.List(ctx, f)
}

func (s *PurchaseService) GetWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	w, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return w, nil
}

func (s *PurchaseService) plan(ctx context.Context, planID int64, svc model.ServiceType) (*model.Plan, error) {
	plan, err := s.plans.GetActive(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if plan.Service != svc {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

// clientForPlan prefers the provider the plan belongs to; catalog-backed
// plan codes are provider scoped and may not exist elsewhere.
func (s *PurchaseService) clientForPlan(plan *model.Plan, svc model.ServiceType) (billpay.Client, error) {
	if plan.ProviderCode != "" {
		if c, ok := s.registry.Get(plan.ProviderCode); ok {
			return c, nil
		}
	}
	return s.registry.PreferredFor(svc)
}

type purchaseArgs struct {
	userID      int64
	service     model.ServiceType
	amount      uint
	total       uint
	destination string
	planCode    string
	client      billpay.Client
}

type purchaseCall func(ctx context.Context, reference string) (*billpay.Result, error)

// execute is the shared state machine: funds reservation (debit +
// pending row in one DB transaction), provider call with deadline,
// then settlement. The caller has already authenticated the pin.
// Every exit after the reservation that is not a confirmed success
// runs compensation; the deferred guard covers panics and forgotten
// branches.
func (s *PurchaseService) execute(ctx context.Context, args purchaseArgs, call purchaseCall) (*model.PurchaseReceipt, error) {
	wallet, err := s.wallets.GetByUserID(ctx, args.userID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	reference := NewReference(args.service)
	started := time.Now()

	var txn *model.Transaction
	err = s.wallets.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.wallets.Debit(ctx, args.userID, args.total); err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return ErrInsufficientBalance
			}
			return fmt.Errorf("debit wallet: %w", err)
		}

		created, err := s.transactions.Create(ctx, &model.Transaction{
			UserID:       args.userID,
			WalletID:     wallet.ID,
			Service:      args.service,
			Amount:       args.amount,
			Total:        args.total,
			Reference:    reference,
			Status:       model.StatusPending,
			Destination:  args.destination,
			PlanCode:     args.planCode,
			ProviderCode: args.client.Code(),
		})
		if err != nil {
			// Rollback restores the balance
			return fmt.Errorf("create transaction: %w", err)
		}
		txn = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Funds are reserved. From here every non-success path must credit
	// the wallet back, including panics and early returns.
	settled := false
	defer func() {
		if !settled {
			s.compensate(context.WithoutCancel(ctx), txn, "purchase aborted before settlement")
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	res, err := call(callCtx, reference)
	if err != nil {
		s.compensate(context.WithoutCancel(ctx), txn, err.Error())
		settled = true
		prom.AddPurchaseOutcome(string(args.service), string(model.StatusFailed))
		return nil, &ProviderError{Provider: args.client.Code(), Err: err}
	}

	if !res.Success {
		s.compensate(context.WithoutCancel(ctx), txn, res.Message)
		settled = true
		prom.AddPurchaseOutcome(string(args.service), string(model.StatusFailed))
		return nil, &PurchaseFailedError{Reference: reference, Reason: res.Message}
	}

	if err := s.transactions.UpdateStatus(ctx, txn.ID, model.StatusSuccessful, ""); err != nil {
		// The provider delivered; never refund here. The row stays
		// pending and the reconciler sweep settles it from the
		// provider's own record.
		logger.Error("failed to mark transaction successful", "reference", reference, "error", err)
	} else {
		txn.Status = model.StatusSuccessful
	}
	settled = true

	prom.AddPurchaseOutcome(string(args.service), string(model.StatusSuccessful))
	prom.AddPurchaseDuration(string(args.service), time.Since(started).Seconds())

	logger.Info("purchase settled",
		"reference", reference,
		"service", string(args.service),
		"provider", args.client.Code(),
		"total", args.total,
	)

	return &model.PurchaseReceipt{Transaction: txn, Provider: res.Raw}, nil
}

// compensate credits the exact reserved total back and marks the row
// failed. The refunded_at claim and the credit share one DB
// transaction, so a row with refunded_at set has provably been
// credited and a second claim finds nothing to transition. When the
// transaction fails as a whole the refund is handed to the queue; it
// must never be dropped.
func (s *PurchaseService) compensate(ctx context.Context, txn *model.Transaction, reason string) {
	if err := s.transactions.UpdateStatus(ctx, txn.ID, model.StatusFailed, reason); err != nil {
		if errors.Is(err, repository.ErrAlreadyFinalized) {
			// Already settled elsewhere; a second credit would double
			// refund.
			return
		}
		logger.Error("failed to mark transaction failed", "reference", txn.Reference, "error", err)
	}
	txn.Status = model.StatusFailed
	txn.ErrorMessage = reason

	credited := false
	err := s.wallets.WithinTransaction(ctx, func(ctx context.Context) error {
		claimed, err := s.transactions.MarkRefunded(ctx, txn.ID)
		if err != nil {
			return err
		}
		if !claimed {
			// Another path already refunded this row.
			return nil
		}
		credited = true
		return s.wallets.Credit(ctx, txn.UserID, txn.Total)
	})
	if err != nil {
		logger.Error("compensating credit failed, enqueueing refund",
			"reference", txn.Reference,
			"user_id", txn.UserID,
			"amount", txn.Total,
			"error", err,
		)
		s.enqueueRefund(ctx, txn, reason)
		return
	}

	if credited {
		prom.AddRefundOutcome("inline")
	}
}

func (s *PurchaseService) enqueueRefund(ctx context.Context, txn *model.Transaction, reason string) {
	if s.refundQueue == nil {
		logger.Error("no refund queue configured, refund requires manual intervention",
			"reference", txn.Reference, "user_id", txn.UserID, "amount", txn.Total)
		return
	}
	_, err := s.refundQueue.PublishJSON(ctx, refunds.Job{
		TransactionID: txn.ID,
		UserID:        txn.UserID,
		Amount:        txn.Total,
		Reference:     txn.Reference,
		Reason:        reason,
	}, nil)
	if err != nil {
		logger.Error("failed to enqueue refund job",
			"reference", txn.Reference, "user_id", txn.UserID, "amount", txn.Total, "error", err)
		return
	}
	prom.AddRefundOutcome("queued")
}
