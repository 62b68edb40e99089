package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nimasrn/vtu-gateway/internal/model"
	"github.com/nimasrn/vtu-gateway/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) GetWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Wallet), args.Error(1)
}

func (m *MockAccountService) ListTransactions(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Transaction), args.Get(1).(int64), args.Error(2)
}

type stubDirectory struct {
	providers []*model.Provider
}

func (d *stubDirectory) Providers() []*model.Provider { return d.providers }

func TestAccountHandler_GetWallet(t *testing.T) {
	t.Run("successful lookup", func(t *testing.T) {
		svc := new(MockAccountService)
		handler := NewAccountHandler(svc, &stubDirectory{})

		svc.On("GetWallet", mock.Anything, int64(7)).
			Return(&model.Wallet{ID: 1, UserID: 7, Balance: 250000, Currency: "NGN"}, nil)

		ctx := setupTestContext("GET", "/wallet?user_id=7", nil)
		handler.GetWallet(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		env := decodeEnvelope(t, ctx)
		var wallet model.Wallet
		require.NoError(t, json.Unmarshal(env.Data, &wallet))
		assert.Equal(t, uint(250000), wallet.Balance)
	})

	t.Run("missing user_id", func(t *testing.T) {
		svc := new(MockAccountService)
		handler := NewAccountHandler(svc, &stubDirectory{})

		ctx := setupTestContext("GET", "/wallet", nil)
		handler.GetWallet(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "GetWallet", mock.Anything, mock.Anything)
	})

	t.Run("wallet not found", func(t *testing.T) {
		svc := new(MockAccountService)
		handler := NewAccountHandler(svc, &stubDirectory{})

		svc.On("GetWallet", mock.Anything, int64(9)).Return(nil, services.ErrWalletNotFound)

		ctx := setupTestContext("GET", "/wallet?user_id=9", nil)
		handler.GetWallet(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}

func TestAccountHandler_ListTransactions(t *testing.T) {
	t.Run("filters parsed from query", func(t *testing.T) {
		svc := new(MockAccountService)
		handler := NewAccountHandler(svc, &stubDirectory{})

		txns := []*model.Transaction{
			{ID: 1, Service: model.ServiceAirtime, Status: model.StatusSuccessful},
			{ID: 2, Service: model.ServiceAirtime, Status: model.StatusFailed},
		}
		svc.On("ListTransactions", mock.Anything, mock.MatchedBy(func(f model.TransactionFilter) bool {
			return f.UserID != nil && *f.UserID == 7 &&
				f.Service != nil && *f.Service == model.ServiceAirtime &&
				len(f.Statuses) == 2 &&
				f.Limit == 10 && f.Offset == 20 && f.Desc
		})).Return(txns, int64(2), nil)

		ctx := setupTestContext("GET", "/transactions?user_id=7&service=airtime&status=successful,failed&limit=10&offset=20&order=desc", nil)
		handler.ListTransactions(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		env := decodeEnvelope(t, ctx)
		var got listTransactionsResponse
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Len(t, got.Items, 2)
		assert.Equal(t, int64(2), got.Total)

		svc.AssertExpectations(t)
	})

	t.Run("unknown service rejected", func(t *testing.T) {
		svc := new(MockAccountService)
		handler := NewAccountHandler(svc, &stubDirectory{})

		ctx := setupTestContext("GET", "/transactions?service=lottery", nil)
		handler.ListTransactions(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "ListTransactions", mock.Anything, mock.Anything)
	})
}

func TestAccountHandler_ListProviders(t *testing.T) {
	svc := new(MockAccountService)
	handler := NewAccountHandler(svc, &stubDirectory{providers: []*model.Provider{
		{Code: "primary", Name: "Primary VTU", Priority: 10, Active: true},
		{Code: "backup", Name: "Backup VTU", Priority: 20, Active: true},
	}})

	ctx := setupTestContext("GET", "/providers", nil)
	handler.ListProviders(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	env := decodeEnvelope(t, ctx)
	var got []*model.Provider
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "primary", got[0].Code)
}
