package refunds

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nimasrn/vtu-gateway/internal/billpay"
	"github.com/nimasrn/vtu-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSweepStore struct {
	mock.Mock
}

func (m *MockSweepStore) ListFailedUnrefunded(ctx context.Context, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Transaction), args.Error(1)
}

func (m *MockSweepStore) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Transaction), args.Error(1)
}

func (m *MockSweepStore) UpdateStatus(ctx context.Context, id int64, status model.TransactionStatus, errorMessage string) error {
	args := m.Called(ctx, id, status, errorMessage)
	return args.Error(0)
}

type MockJobPublisher struct {
	mock.Mock
}

func (m *MockJobPublisher) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	args := m.Called(ctx, data, metadata)
	return args.String(0), args.Error(1)
}

type MockProviderLookup struct {
	mock.Mock
}

func (m *MockProviderLookup) Get(code string) (billpay.Client, bool) {
	args := m.Called(code)
	client, _ := args.Get(0).(billpay.Client)
	return client, args.Bool(1)
}

func (m *MockProviderLookup) PreferredFor(service model.ServiceType) (billpay.Client, error) {
	args := m.Called(service)
	client, _ := args.Get(0).(billpay.Client)
	return client, args.Error(1)
}

type MockStatusClient struct {
	mock.Mock
	billpay.Client
}

func (m *MockStatusClient) Code() string { return "mockpay" }

func (m *MockStatusClient) TransactionStatus(ctx context.Context, reference string) (*billpay.Result, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billpay.Result), args.Error(1)
}

func sweepTransaction(id int64, status model.TransactionStatus) *model.Transaction {
	return &model.Transaction{
		ID:           id,
		UserID:       7,
		Service:      model.ServiceAirtime,
		Amount:       50000,
		Total:        50000,
		Status:       status,
		Reference:    "AIR-1700000000000-sweep",
		ProviderCode: "mockpay",
	}
}

func TestSweeper_FailedUnrefundedEnqueued(t *testing.T) {
	store := new(MockSweepStore)
	publisher := new(MockJobPublisher)
	providers := new(MockProviderLookup)
	sweeper := NewSweeper(store, publisher, providers, 5*time.Minute)

	txn := sweepTransaction(42, model.StatusFailed)
	txn.ErrorMessage = "provider declined"
	store.On("ListFailedUnrefunded", mock.Anything, mock.Anything, sweepBatchSize).
		Return([]*model.Transaction{txn}, nil).Once()
	store.On("ListStalePending", mock.Anything, mock.Anything, sweepBatchSize).
		Return([]*model.Transaction{}, nil).Once()

	publisher.On("PublishJSON", mock.Anything, mock.MatchedBy(func(data interface{}) bool {
		job, ok := data.(Job)
		return ok &&
			job.TransactionID == 42 &&
			job.UserID == 7 &&
			job.Amount == 50000 &&
			job.Reference == txn.Reference &&
			job.Reason == "provider declined"
	}), mock.Anything).Return("1-0", nil).Once()

	sweeper.Sweep(context.Background())

	publisher.AssertExpectations(t)
}

func TestSweeper_StalePendingConfirmedDelivered(t *testing.T) {
	store := new(MockSweepStore)
	publisher := new(MockJobPublisher)
	providers := new(MockProviderLookup)
	sweeper := NewSweeper(store, publisher, providers, 5*time.Minute)

	txn := sweepTransaction(43, model.StatusPending)
	store.On("ListFailedUnrefunded", mock.Anything, mock.Anything, sweepBatchSize).
		Return([]*model.Transaction{}, nil).Once()
	store.On("ListStalePending", mock.Anything, mock.Anything, sweepBatchSize).
		Return([]*model.Transaction{txn}, nil).Once()

	client := new(MockStatusClient)
	providers.On("Get", "mockpay").Return(client, true).Once()
	client.On("TransactionStatus", mock.Anything, txn.Reference).
		Return(&billpay.Result{Success: true, Raw: json.RawMessage(`{"status":"delivered"}`)}, nil).Once()
	store.On("UpdateStatus", mock.Anything, int64(43), model.StatusSuccessful, "").Return(nil).Once()

	sweeper.Sweep(context.Background())

	store.AssertExpectations(t)
	publisher.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweeper_StalePendingNotDeliveredRefunded(t *testing.T) {
	store := new(MockSweepStore)
	publisher := new(MockJobPublisher)
	providers := new(MockProviderLookup)
	sweeper := NewSweeper(store, publisher, providers, 5*time.Minute)

	txn := sweepTransaction(44, model.StatusPending)
	store.On("ListFailedUnrefunded", mock.Anything, mock.Anything, sweepBatchSize).
		Return([]*model.Transaction{}, nil).Once()
	store.On("ListStalePending", mock.Anything, mock.Anything, sweepBatchSize).
		Return([]*model.Transaction{txn}, nil).Once()

	client := new(MockStatusClient)
	providers.On("Get", "mockpay").Return(client, true).Once()
	client.On("TransactionStatus", mock.Anything, txn.Reference).
		Return(&billpay.Result{Success: false, Message: "transaction not found"}, nil).Once()
	store.On("UpdateStatus", mock.Anything, int64(44), model.StatusFailed, "transaction not found").Return(nil).Once()
	publisher.On("PublishJSON", mock.Anything, mock.MatchedBy(func(data interface{}) bool {
		job, ok := data.(Job)
		return ok && job.TransactionID == 44 && job.Amount == 50000
	}), mock.Anything).Return("1-1", nil).Once()

	sweeper.Sweep(context.Background())

	store.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestSweeper_StalePendingProviderUnreachable(t *testing.T) {
	store := new(MockSweepStore)
	publisher := new(MockJobPublisher)
	providers := new(MockProviderLookup)
	sweeper := NewSweeper(store, publisher, providers, 5*time.Minute)

	txn := sweepTransaction(45, model.StatusPending)
	store.On("ListFailedUnrefunded", mock.Anything, mock.Anything, sweepBatchSize).
		Return([]*model.Transaction{}, nil).Once()
	store.On("ListStalePending", mock.Anything, mock.Anything, sweepBatchSize).
		Return([]*model.Transaction{txn}, nil).Once()

	client := new(MockStatusClient)
	providers.On("Get", "mockpay").Return(client, true).Once()
	client.On("TransactionStatus", mock.Anything, txn.Reference).
		Return(nil, errors.New("connection refused")).Once()

	// Unverifiable rows stay pending until the provider answers.
	sweeper.Sweep(context.Background())

	store.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweeper_StalePendingProviderGoneFallsBack(t *testing.T) {
	store := new(MockSweepStore)
	publisher := new(MockJobPublisher)
	providers := new(MockProviderLookup)
	sweeper := NewSweeper(store, publisher, providers, 5*time.Minute)

	txn := sweepTransaction(46, model.StatusPending)
	txn.ProviderCode = "retired"
	store.On("ListFailedUnrefunded", mock.Anything, mock.Anything, sweepBatchSize).
		Return([]*model.Transaction{}, nil).Once()
	store.On("ListStalePending", mock.Anything, mock.Anything, sweepBatchSize).
		Return([]*model.Transaction{txn}, nil).Once()

	client := new(MockStatusClient)
	providers.On("Get", "retired").Return(nil, false).Once()
	providers.On("PreferredFor", model.ServiceAirtime).Return(client, nil).Once()
	client.On("TransactionStatus", mock.Anything, txn.Reference).
		Return(&billpay.Result{Success: true}, nil).Once()
	store.On("UpdateStatus", mock.Anything, int64(46), model.StatusSuccessful, "").Return(nil).Once()

	sweeper.Sweep(context.Background())

	providers.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestSweeper_CutoffRespectsStaleAfter(t *testing.T) {
	store := new(MockSweepStore)
	publisher := new(MockJobPublisher)
	providers := new(MockProviderLookup)
	staleAfter := 10 * time.Minute
	sweeper := NewSweeper(store, publisher, providers, staleAfter)

	var pendingCutoff time.Time
	store.On("ListFailedUnrefunded", mock.Anything, mock.Anything, sweepBatchSize).
		Return([]*model.Transaction{}, nil).Once()
	store.On("ListStalePending", mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		pendingCutoff = cutoff
		return true
	}), sweepBatchSize).Return([]*model.Transaction{}, nil).Once()

	sweeper.Sweep(context.Background())

	require.False(t, pendingCutoff.IsZero())
	assert.WithinDuration(t, time.Now().Add(-staleAfter), pendingCutoff, 2*time.Second)
}
