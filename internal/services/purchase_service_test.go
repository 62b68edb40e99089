package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nimasrn/vtu-gateway/internal/billpay"
	"github.com/nimasrn/vtu-gateway/internal/model"
	"github.com/nimasrn/vtu-gateway/internal/refunds"
	"github.com/nimasrn/vtu-gateway/internal/repository"
)

type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) GetByUserID(ctx context.Context, userID int64) (*model.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Wallet), args.Error(1)
}

func (m *MockWalletRepository) Debit(ctx context.Context, userID int64, amount uint) error {
	args := m.Called(ctx, userID, amount)
	return args.Error(0)
}

func (m *MockWalletRepository) Credit(ctx context.Context, userID int64, amount uint) error {
	args := m.Called(ctx, userID, amount)
	return args.Error(0)
}

func (m *MockWalletRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	args := m.Called(ctx, txn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	created := args.Get(0).(*model.Transaction)
	if created == txn {
		txn.ID = 1
	}
	return created, args.Error(1)
}

func (m *MockTransactionRepository) UpdateStatus(ctx context.Context, id int64, status model.TransactionStatus, errorMessage string) error {
	args := m.Called(ctx, id, status, errorMessage)
	return args.Error(0)
}

func (m *MockTransactionRepository) MarkRefunded(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionRepository) GetByReference(ctx context.Context, reference string) (*model.Transaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Transaction), args.Get(1).(int64), args.Error(2)
}

type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) GetActive(ctx context.Context, id int64) (*model.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Plan), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

type MockProviderClient struct {
	mock.Mock
	billpay.Client
}

func (m *MockProviderClient) Code() string { return "mockpay" }

func (m *MockProviderClient) PurchaseAirtime(ctx context.Context, req billpay.AirtimeRequest) (*billpay.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billpay.Result), args.Error(1)
}

func (m *MockProviderClient) PurchaseData(ctx context.Context, req billpay.DataRequest) (*billpay.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billpay.Result), args.Error(1)
}

func (m *MockProviderClient) PurchaseExamPin(ctx context.Context, req billpay.ExamPinRequest) (*billpay.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billpay.Result), args.Error(1)
}

func (m *MockProviderClient) TransactionStatus(ctx context.Context, reference string) (*billpay.Result, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billpay.Result), args.Error(1)
}

type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) PreferredFor(service model.ServiceType) (billpay.Client, error) {
	args := m.Called(service)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(billpay.Client), args.Error(1)
}

func (m *MockRegistry) Get(code string) (billpay.Client, bool) {
	args := m.Called(code)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(billpay.Client), args.Bool(1)
}

type MockRefundPublisher struct {
	mock.Mock
}

func (m *MockRefundPublisher) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	args := m.Called(ctx, data, metadata)
	return args.String(0), args.Error(1)
}

type purchaseFixture struct {
	wallets  *MockWalletRepository
	txns     *MockTransactionRepository
	plans    *MockPlanRepository
	users    *MockUserRepository
	registry *MockRegistry
	client   *MockProviderClient
	queue    *MockRefundPublisher
	service  *PurchaseService
}

func newPurchaseFixture(t *testing.T, opts PurchaseOptions) *purchaseFixture {
	t.Helper()
	f := &purchaseFixture{
		wallets:  new(MockWalletRepository),
		txns:     new(MockTransactionRepository),
		plans:    new(MockPlanRepository),
		users:    new(MockUserRepository),
		registry: new(MockRegistry),
		client:   new(MockProviderClient),
		queue:    new(MockRefundPublisher),
	}
	f.service = NewPurchaseService(f.wallets, f.txns, f.plans, f.users, f.registry, f.queue, opts)
	return f
}

func (f *purchaseFixture) userWithPin(t *testing.T, pin string) {
	t.Helper()
	hash, err := HashPin(pin)
	require.NoError(t, err)
	f.users.On("GetByID", mock.Anything, int64(1)).Return(&model.User{ID: 1, Email: "ada@example.com", PinHash: hash}, nil)
}

func validAirtimeRequest() model.AirtimePurchaseRequest {
	return model.AirtimePurchaseRequest{
		UserID:  1,
		Network: "MTN",
		Phone:   "08012345678",
		Amount:  50000,
		Pin:     "4321",
	}
}

func TestPurchaseService_Airtime_Success(t *testing.T) {
	f := newPurchaseFixture(t, PurchaseOptions{})
	ctx := context.Background()

	f.userWithPin(t, "4321")
	f.registry.On("PreferredFor", model.ServiceAirtime).Return(f.client, nil)
	f.wallets.On("GetByUserID", mock.Anything, int64(1)).Return(&model.Wallet{ID: 10, UserID: 1, Balance: 100000}, nil)
	f.wallets.On("WithinTransaction", mock.Anything, mock.AnythingOfType("func(context.Context) error")).Return(nil)
	f.wallets.On("Debit", mock.Anything, int64(1), uint(50000)).Return(nil)
	f.txns.On("Create", mock.Anything, mock.MatchedBy(func(txn *model.Transaction) bool {
		return txn.Status == model.StatusPending &&
			txn.Total == 50000 &&
			txn.ProviderCode == "mockpay" &&
			txn.WalletID == 10
	})).Return(&model.Transaction{ID: 1, UserID: 1, WalletID: 10, Total: 50000, Reference: "r", Service: model.ServiceAirtime, Status: model.StatusPending}, nil)
	f.client.On("PurchaseAirtime", mock.Anything, mock.MatchedBy(func(req billpay.AirtimeRequest) bool {
		return req.Network == model.NetworkMTN && req.AirtimeType == "VTU" && req.Reference != ""
	})).Return(&billpay.Result{Success: true, Raw: []byte(`{"success":true}`)}, nil)
	f.txns.On("UpdateStatus", mock.Anything, int64(1), model.StatusSuccessful, "").Return(nil)

	receipt, err := f.service.PurchaseAirtime(ctx, validAirtimeRequest())
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccessful, receipt.Transaction.Status)
	assert.JSONEq(t, `{"success":true}`, string(receipt.Provider))

	// A confirmed success must never credit back.
	f.wallets.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
	f.wallets.AssertExpectations(t)
	f.txns.AssertExpectations(t)
}

func TestPurchaseService_Airtime_ProviderDeclines(t *testing.T) {
	f := newPurchaseFixture(t, PurchaseOptions{})
	ctx := context.Background()

	f.userWithPin(t, "4321")
	f.registry.On("PreferredFor", model.ServiceAirtime).Return(f.client, nil)
	f.wallets.On("GetByUserID", mock.Anything, int64(1)).Return(&model.Wallet{ID: 10, UserID: 1}, nil)
	f.wallets.On("WithinTransaction", mock.Anything, mock.Anything).Return(nil)
	f.wallets.On("Debit", mock.Anything, int64(1), uint(50000)).Return(nil)
	f.txns.On("Create", mock.Anything, mock.Anything).
		Return(&model.Transaction{ID: 1, UserID: 1, Total: 50000, Reference: "r", Status: model.StatusPending}, nil)
	f.client.On("PurchaseAirtime", mock.Anything, mock.Anything).
		Return(&billpay.Result{Success: false, Message: "insufficient airtime stock"}, nil)
	f.txns.On("UpdateStatus", mock.Anything, int64(1), model.StatusFailed, "insufficient airtime stock").Return(nil)
	f.wallets.On("Credit", mock.Anything, int64(1), uint(50000)).Return(nil)
	f.txns.On("MarkRefunded", mock.Anything, int64(1)).Return(true, nil)

	_, err := f.service.PurchaseAirtime(ctx, validAirtimeRequest())

	var failed *PurchaseFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "insufficient airtime stock", failed.Reason)

	f.wallets.AssertExpectations(t)
	f.txns.AssertExpectations(t)
}

func TestPurchaseService_Airtime_TransportError(t *testing.T) {
	f := newPurchaseFixture(t, PurchaseOptions{})
	ctx := context.Background()

	f.userWithPin(t, "4321")
	f.registry.On("PreferredFor", model.ServiceAirtime).Return(f.client, nil)
	f.wallets.On("GetByUserID", mock.Anything, int64(1)).Return(&model.Wallet{ID: 10, UserID: 1}, nil)
	f.wallets.On("WithinTransaction", mock.Anything, mock.Anything).Return(nil)
	f.wallets.On("Debit", mock.Anything, int64(1), uint(50000)).Return(nil)
	f.txns.On("Create", mock.Anything, mock.Anything).
		Return(&model.Transaction{ID: 1, UserID: 1, Total: 50000, Reference: "r", Status: model.StatusPending}, nil)
	f.client.On("PurchaseAirtime", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset by peer"))
	f.txns.On("UpdateStatus", mock.Anything, int64(1), model.StatusFailed, mock.Anything).Return(nil)
	f.wallets.On("Credit", mock.Anything, int64(1), uint(50000)).Return(nil)
	f.txns.On("MarkRefunded", mock.Anything, int64(1)).Return(true, nil)

	_, err := f.service.PurchaseAirtime(ctx, validAirtimeRequest())

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "mockpay", provErr.Provider)

	f.wallets.AssertExpectations(t)
	f.txns.AssertExpectations(t)
}

func TestPurchaseService_Airtime_InsufficientFunds(t *testing.T) {
	f := newPurchaseFixture(t, PurchaseOptions{})
	ctx := context.Background()

	f.userWithPin(t, "4321")
	f.registry.On("PreferredFor", model.ServiceAirtime).Return(f.client, nil)
	f.wallets.On("GetByUserID", mock.Anything, int64(1)).Return(&model.Wallet{ID: 10, UserID: 1, Balance: 100}, nil)
	f.wallets.On("WithinTransaction", mock.Anything, mock.Anything).Return(nil)
	f.wallets.On("Debit", mock.Anything, int64(1), uint(50000)).Return(repository.ErrInsufficientBalance)

	_, err := f.service.PurchaseAirtime(ctx, validAirtimeRequest())
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// Nothing was reserved: no provider call, no row, no refund.
	f.client.AssertNotCalled(t, "PurchaseAirtime", mock.Anything, mock.Anything)
	f.txns.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.wallets.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
}

func TestPurchaseService_Airtime_WrongPin(t *testing.T) {
	f := newPurchaseFixture(t, PurchaseOptions{})
	ctx := context.Background()

	f.userWithPin(t, "4321")

	req := validAirtimeRequest()
	req.Pin = "0000"

	_, err := f.service.PurchaseAirtime(ctx, req)
	assert.ErrorIs(t, err, ErrIncorrectPin)

	// A wrong pin stops the request before any routing or money movement.
	f.registry.AssertNotCalled(t, "PreferredFor", mock.Anything)
	f.wallets.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything)
	f.txns.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPurchaseService_Data_WrongPinBeforePlanLookup(t *testing.T) {
	f := newPurchaseFixture(t, PurchaseOptions{})
	ctx := context.Background()

	f.userWithPin(t, "4321")

	_, err := f.service.PurchaseData(ctx, model.DataPurchaseRequest{
		UserID:  1,
		Network: "mtn",
		Phone:   "08012345678",
		PlanID:  5,
		Pin:     "0000",
	})
	assert.ErrorIs(t, err, ErrIncorrectPin)

	f.plans.AssertNotCalled(t, "GetActive", mock.Anything, mock.Anything)
	f.registry.AssertNotCalled(t, "Get", mock.Anything)
}

func TestPurchaseService_Airtime_UnknownNetwork(t *testing.T) {
	f := newPurchaseFixture(t, PurchaseOptions{})
	ctx := context.Background()

	f.userWithPin(t, "4321")
	req := validAirtimeRequest()
	req.Network = "vodafone"

	_, err := f.service.PurchaseAirtime(ctx, req)
	assert.ErrorIs(t, err, model.ErrUnknownNetwork)

	f.wallets.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything)
}

func TestPurchaseService_DefaultPin(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected when disabled", func(t *testing.T) {
		f := newPurchaseFixture(t, PurchaseOptions{AllowDefaultPin: false})
		f.users.On("GetByID", mock.Anything, int64(1)).Return(&model.User{ID: 1}, nil)
		f.registry.On("PreferredFor", model.ServiceAirtime).Return(f.client, nil)

		req := validAirtimeRequest()
		req.Pin = "1234"

		_, err := f.service.PurchaseAirtime(ctx, req)
		assert.ErrorIs(t, err, ErrPinNotSet)
	})

	t.Run("accepted when enabled and no pin set", func(t *testing.T) {
		f := newPurchaseFixture(t, PurchaseOptions{AllowDefaultPin: true})
		f.users.On("GetByID", mock.Anything, int64(1)).Return(&model.User{ID: 1}, nil)
		f.registry.On("PreferredFor", model.ServiceAirtime).Return(f.client, nil)
		f.wallets.On("GetByUserID", mock.Anything, int64(1)).Return(&model.Wallet{ID: 10, UserID: 1}, nil)
		f.wallets.On("WithinTransaction", mock.Anything, mock.Anything).Return(nil)
		f.wallets.On("Debit", mock.Anything, int64(1), uint(50000)).Return(nil)
		f.txns.On("Create", mock.Anything, mock.Anything).
			Return(&model.Transaction{ID: 1, UserID: 1, Total: 50000, Status: model.StatusPending}, nil)
		f.client.On("PurchaseAirtime", mock.Anything, mock.Anything).
			Return(&billpay.Result{Success: true}, nil)
		f.txns.On("UpdateStatus", mock.Anything, int64(1), model.StatusSuccessful, "").Return(nil)

		req := validAirtimeRequest()
		req.Pin = "1234"

		_, err := f.service.PurchaseAirtime(ctx, req)
		assert.NoError(t, err)
	})

	t.Run("not accepted once a pin exists", func(t *testing.T) {
		f := newPurchaseFixture(t, PurchaseOptions{AllowDefaultPin: true})
		f.userWithPin(t, "4321")
		f.registry.On("PreferredFor", model.ServiceAirtime).Return(f.client, nil)

		req := validAirtimeRequest()
		req.Pin = "1234"

		_, err := f.service.PurchaseAirtime(ctx, req)
		assert.ErrorIs(t, err, ErrIncorrectPin)
	})
}

func TestPurchaseService_Data_PriceFromPlan(t *testing.T) {
	f := newPurchaseFixture(t, PurchaseOptions{})
	ctx := context.Background()

	f.userWithPin(t, "4321")
	f.plans.On("GetActive", mock.Anything, int64(5)).
		Return(&model.Plan{ID: 5, ProviderCode: "mockpay", Service: model.ServiceData, Code: "MTN-1GB", Price: 30000, Active: true}, nil)
	f.registry.On("Get", "mockpay").Return(f.client, true)
	f.wallets.On("GetByUserID", mock.Anything, int64(1)).Return(&model.Wallet{ID: 10, UserID: 1}, nil)
	f.wallets.On("WithinTransaction", mock.Anything, mock.Anything).Return(nil)
	// Debited amount is the stored plan price, untouchable by the client.
	f.wallets.On("Debit", mock.Anything, int64(1), uint(30000)).Return(nil)
	f.txns.On("Create", mock.Anything, mock.MatchedBy(func(txn *model.Transaction) bool {
		return txn.Total == 30000 && txn.PlanCode == "MTN-1GB"
	})).Return(&model.Transaction{ID: 2, UserID: 1, Total: 30000, Status: model.StatusPending}, nil)
	f.client.On("PurchaseData", mock.Anything, mock.MatchedBy(func(req billpay.DataRequest) bool {
		return req.PlanCode == "MTN-1GB"
	})).Return(&billpay.Result{Success: true}, nil)
	f.txns.On("UpdateStatus", mock.Anything, int64(2), model.StatusSuccessful, "").Return(nil)

	_, err := f.service.PurchaseData(ctx, model.DataPurchaseRequest{
		UserID:  1,
		Network: "mtn",
		Phone:   "08012345678",
		PlanID:  5,
		Pin:     "4321",
	})
	require.NoError(t, err)
	f.wallets.AssertExpectations(t)
}

func TestPurchaseService_Data_PlanServiceMismatch(t *testing.T) {
	f := newPurchaseFixture(t, PurchaseOptions{})
	ctx := context.Background()

	f.userWithPin(t, "4321")
	f.plans.On("GetActive", mock.Anything, int64(9)).
		Return(&model.Plan{ID: 9, Service: model.ServiceCable, Code: "DSTV-COMPACT", Price: 1250000, Active: true}, nil)

	_, err := f.service.PurchaseData(ctx, model.DataPurchaseRequest{
		UserID:  1,
		Network: "mtn",
		Phone:   "08012345678",
		PlanID:  9,
		Pin:     "4321",
	})
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestPurchaseService_ExamPin_QuantityTotal(t *testing.T) {
	f := newPurchaseFixture(t, PurchaseOptions{})
	ctx := context.Background()

	f.userWithPin(t, "4321")
	f.plans.On("GetActive", mock.Anything, int64(3)).
		Return(&model.Plan{ID: 3, ProviderCode: "mockpay", Service: model.ServiceExamPin, Code: "WAEC-PIN", Price: 350000, Active: true}, nil)
	f.registry.On("Get", "mockpay").Return(f.client, true)
	f.wallets.On("GetByUserID", mock.Anything, int64(1)).Return(&model.Wallet{ID: 10, UserID: 1}, nil)
	f.wallets.On("WithinTransaction", mock.Anything, mock.Anything).Return(nil)
	f.wallets.On("Debit", mock.Anything, int64(1), uint(1050000)).Return(nil)
	f.txns.On("Create", mock.Anything, mock.Anything).
		Return(&model.Transaction{ID: 3, UserID: 1, Total: 1050000, Status: model.StatusPending}, nil)
	f.client.On("PurchaseExamPin", mock.Anything, mock.MatchedBy(func(req billpay.ExamPinRequest) bool {
		return req.Quantity == 3 && req.Amount == 1050000
	})).Return(&billpay.Result{Success: true}, nil)
	f.txns.On("UpdateStatus", mock.Anything, int64(3), model.StatusSuccessful, "").Return(nil)

	_, err := f.service.PurchaseExamPin(ctx, model.ExamPinPurchaseRequest{
		UserID:       1,
		ExamProvider: "waec",
		PlanID:       3,
		Quantity:     3,
		Pin:          "4321",
	})
	require.NoError(t, err)
	f.wallets.AssertExpectations(t)
}

func TestPurchaseService_RefundEnqueuedWhenCreditFails(t *testing.T) {
	f := newPurchaseFixture(t, PurchaseOptions{})
	ctx := context.Background()

	f.userWithPin(t, "4321")
	f.registry.On("PreferredFor", model.ServiceAirtime).Return(f.client, nil)
	f.wallets.On("GetByUserID", mock.Anything, int64(1)).Return(&model.Wallet{ID: 10, UserID: 1}, nil)
	f.wallets.On("WithinTransaction", mock.Anything, mock.Anything).Return(nil)
	f.wallets.On("Debit", mock.Anything, int64(1), uint(50000)).Return(nil)
	f.txns.On("Create", mock.Anything, mock.Anything).
		Return(&model.Transaction{ID: 1, UserID: 1, Total: 50000, Reference: "AIR-r", Status: model.StatusPending}, nil)
	f.client.On("PurchaseAirtime", mock.Anything, mock.Anything).
		Return(&billpay.Result{Success: false, Message: "declined"}, nil)
	f.txns.On("UpdateStatus", mock.Anything, int64(1), model.StatusFailed, "declined").Return(nil)
	f.txns.On("MarkRefunded", mock.Anything, int64(1)).Return(true, nil)
	f.wallets.On("Credit", mock.Anything, int64(1), uint(50000)).Return(errors.New("db unavailable"))
	f.queue.On("PublishJSON", mock.Anything, mock.MatchedBy(func(data interface{}) bool {
		job, ok := data.(refunds.Job)
		return ok && job.TransactionID == 1 && job.Amount == 50000 && job.Reference == "AIR-r"
	}), mock.Anything).Return("stream-1", nil)

	_, err := f.service.PurchaseAirtime(ctx, validAirtimeRequest())
	require.Error(t, err)

	// The failed credit rolls the claim back with it, so the job must
	// reach the queue.
	f.queue.AssertExpectations(t)
}

func TestPurchaseService_TransactionStatus_UsesRecordedProvider(t *testing.T) {
	f := newPurchaseFixture(t, PurchaseOptions{})
	ctx := context.Background()

	txn := &model.Transaction{ID: 1, Reference: "AIR-r", Service: model.ServiceAirtime, ProviderCode: "mockpay", Status: model.StatusSuccessful}
	f.txns.On("GetByReference", mock.Anything, "AIR-r").Return(txn, nil)
	f.registry.On("Get", "mockpay").Return(f.client, true)
	f.client.On("TransactionStatus", mock.Anything, "AIR-r").
		Return(&billpay.Result{Success: true, Message: "delivered"}, nil)

	gotTxn, res, err := f.service.TransactionStatus(ctx, "AIR-r")
	require.NoError(t, err)
	assert.Equal(t, txn, gotTxn)
	require.NotNil(t, res)
	assert.True(t, res.Success)

	// The currently preferred provider is never consulted when the
	// recorded one is still configured.
	f.registry.AssertNotCalled(t, "PreferredFor", mock.Anything)
}

func TestPurchaseService_TransactionStatus_FallsBackWhenProviderGone(t *testing.T) {
	f := newPurchaseFixture(t, PurchaseOptions{})
	ctx := context.Background()

	txn := &model.Transaction{ID: 1, Reference: "AIR-r", Service: model.ServiceAirtime, ProviderCode: "retired", Status: model.StatusPending}
	f.txns.On("GetByReference", mock.Anything, "AIR-r").Return(txn, nil)
	f.registry.On("Get", "retired").Return(nil, false)
	f.registry.On("PreferredFor", model.ServiceAirtime).Return(f.client, nil)
	f.client.On("TransactionStatus", mock.Anything, "AIR-r").
		Return(&billpay.Result{Success: false, Message: "unknown reference"}, nil)

	gotTxn, res, err := f.service.TransactionStatus(ctx, "AIR-r")
	require.NoError(t, err)
	assert.Equal(t, txn, gotTxn)
	require.NotNil(t, res)
	assert.False(t, res.Success)
}

func TestNewReference_UniqueAndPrefixed(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		ref := NewReference(model.ServiceAirtime)
		assert.True(t, len(ref) > 4 && ref[:4] == "AIR-")
		assert.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}

	assert.Equal(t, "DAT", NewReference(model.ServiceData)[:3])
	assert.Equal(t, "EXM", NewReference(model.ServiceExamPin)[:3])
}
