package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/vtu-gateway/internal/billpay"
	"github.com/nimasrn/vtu-gateway/internal/model"
	"github.com/nimasrn/vtu-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func (m *MockProviderClient) Networks(ctx context.Context) ([]billpay.Network, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billpay.Network), args.Error(1)
}

func (m *MockProviderClient) CableProviders(ctx context.Context) ([]billpay.Biller, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billpay.Biller), args.Error(1)
}

func (m *MockProviderClient) CablePlans(ctx context.Context, cableProvider string) ([]billpay.CablePlan, error) {
	args := m.Called(ctx, cableProvider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billpay.CablePlan), args.Error(1)
}

func (m *MockPlanRepository) ListByService(ctx context.Context, svc model.ServiceType) ([]*model.Plan, error) {
	args := m.Called(ctx, svc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Plan), args.Error(1)
}

func setupCatalogCache(t *testing.T) redis.RedisAdapter {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	connName := fmt.Sprintf("catalog-test-%d", time.Now().UnixNano())
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	return adapter
}

func TestCatalogService_Networks_CachesProviderAnswer(t *testing.T) {
	client := new(MockProviderClient)
	registry := new(MockRegistry)
	cache := setupCatalogCache(t)
	svc := NewCatalogService(registry, nil, cache, time.Minute)

	networks := []billpay.Network{{ID: "1", Name: "MTN"}, {ID: "2", Name: "Glo"}}
	registry.On("PreferredFor", model.ServiceAirtime).Return(client, nil).Once()
	client.On("Networks", mock.Anything).Return(networks, nil).Once()

	ctx := context.Background()
	got, err := svc.Networks(ctx)
	require.NoError(t, err)
	assert.Equal(t, networks, got)

	// Second call is served from the cache; nothing reaches the
	// registry or the provider again.
	got, err = svc.Networks(ctx)
	require.NoError(t, err)
	assert.Equal(t, networks, got)

	client.AssertNumberOfCalls(t, "Networks", 1)
	registry.AssertNumberOfCalls(t, "PreferredFor", 1)
}

func TestCatalogService_CablePlans_KeyedByProvider(t *testing.T) {
	client := new(MockProviderClient)
	registry := new(MockRegistry)
	cache := setupCatalogCache(t)
	svc := NewCatalogService(registry, nil, cache, time.Minute)

	dstvPlans := []billpay.CablePlan{{Code: "DSTV-COMPACT", Name: "Compact", Price: 1900000}}
	gotvPlans := []billpay.CablePlan{{Code: "GOTV-JOLLI", Name: "Jolli", Price: 580000}}

	registry.On("PreferredFor", model.ServiceCable).Return(client, nil)
	client.On("CablePlans", mock.Anything, "dstv").Return(dstvPlans, nil).Once()
	client.On("CablePlans", mock.Anything, "gotv").Return(gotvPlans, nil).Once()

	ctx := context.Background()
	got, err := svc.CablePlans(ctx, "dstv")
	require.NoError(t, err)
	assert.Equal(t, dstvPlans, got)

	got, err = svc.CablePlans(ctx, "gotv")
	require.NoError(t, err)
	assert.Equal(t, gotvPlans, got)

	// Each provider has its own cache entry.
	got, err = svc.CablePlans(ctx, "dstv")
	require.NoError(t, err)
	assert.Equal(t, dstvPlans, got)
	client.AssertNumberOfCalls(t, "CablePlans", 2)
}

func TestCatalogService_ProviderErrorNotCached(t *testing.T) {
	client := new(MockProviderClient)
	registry := new(MockRegistry)
	cache := setupCatalogCache(t)
	svc := NewCatalogService(registry, nil, cache, time.Minute)

	registry.On("PreferredFor", model.ServiceCable).Return(client, nil)
	client.On("CableProviders", mock.Anything).Return(nil, assert.AnError).Once()

	ctx := context.Background()
	_, err := svc.CableProviders(ctx)
	require.ErrorIs(t, err, assert.AnError)

	// The failure was not written to the cache, so the next call goes
	// back upstream and can succeed.
	billers := []billpay.Biller{{ID: "dstv", Name: "DStv"}}
	client.On("CableProviders", mock.Anything).Return(billers, nil).Once()

	got, err := svc.CableProviders(ctx)
	require.NoError(t, err)
	assert.Equal(t, billers, got)
}

func TestCatalogService_NoProvider(t *testing.T) {
	registry := new(MockRegistry)
	svc := NewCatalogService(registry, nil, setupCatalogCache(t), time.Minute)

	registry.On("PreferredFor", model.ServiceAirtime).Return(nil, billpay.ErrNoProvider)

	_, err := svc.Networks(context.Background())
	assert.ErrorIs(t, err, billpay.ErrNoProvider)
}

func TestCatalogService_NilCacheStillServes(t *testing.T) {
	client := new(MockProviderClient)
	registry := new(MockRegistry)
	svc := NewCatalogService(registry, nil, nil, time.Minute)

	networks := []billpay.Network{{ID: "1", Name: "MTN"}}
	registry.On("PreferredFor", model.ServiceAirtime).Return(client, nil)
	client.On("Networks", mock.Anything).Return(networks, nil)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		got, err := svc.Networks(ctx)
		require.NoError(t, err)
		assert.Equal(t, networks, got)
	}
	client.AssertNumberOfCalls(t, "Networks", 2)
}

func TestCatalogService_PlansComeFromStore(t *testing.T) {
	plans := new(MockPlanRepository)
	svc := NewCatalogService(nil, plans, setupCatalogCache(t), time.Minute)

	stored := []*model.Plan{{ID: 1, ProviderCode: "mockpay", Service: model.ServiceData, Code: "MTN-1GB", Price: 30000}}
	plans.On("ListByService", mock.Anything, model.ServiceData).Return(stored, nil).Twice()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		got, err := svc.Plans(ctx, model.ServiceData)
		require.NoError(t, err)
		assert.Equal(t, stored, got)
	}
	// Stored plans carry the prices purchases charge; they are read
	// fresh every time, never through the redis cache.
	plans.AssertNumberOfCalls(t, "ListByService", 2)
}
