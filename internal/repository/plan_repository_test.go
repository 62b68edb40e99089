package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimasrn/vtu-gateway/internal/model"
)

func TestPlanRepository_GetActive(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewPlanRepository(tdb.DB)
	ctx := context.Background()

	active := &PlanEntity{
		ProviderCode: "primary",
		Service:      string(model.ServiceData),
		Code:         "MTN-1GB-30D",
		Name:         "MTN 1GB Monthly",
		Price:        30000,
		Active:       true,
	}
	require.NoError(t, tdb.rawDB.Create(active).Error)

	inactive := &PlanEntity{
		ProviderCode: "primary",
		Service:      string(model.ServiceData),
		Code:         "MTN-500MB-30D",
		Name:         "MTN 500MB Monthly",
		Price:        15000,
		Active:       false,
	}
	require.NoError(t, tdb.rawDB.Create(inactive).Error)

	t.Run("returns active plan", func(t *testing.T) {
		plan, err := repo.GetActive(ctx, active.ID)
		require.NoError(t, err)
		assert.Equal(t, "MTN-1GB-30D", plan.Code)
		assert.Equal(t, uint(30000), plan.Price)
	})

	t.Run("inactive plan not purchasable", func(t *testing.T) {
		_, err := repo.GetActive(ctx, inactive.ID)
		assert.ErrorIs(t, err, ErrPlanNotFound)
	})

	t.Run("unknown plan", func(t *testing.T) {
		_, err := repo.GetActive(ctx, 999999)
		assert.ErrorIs(t, err, ErrPlanNotFound)
	})
}

func TestPlanRepository_ListByService(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewPlanRepository(tdb.DB)
	ctx := context.Background()

	plans := []*PlanEntity{
		{ProviderCode: "primary", Service: string(model.ServiceData), Code: "d2", Name: "2GB", Price: 50000, Active: true},
		{ProviderCode: "primary", Service: string(model.ServiceData), Code: "d1", Name: "1GB", Price: 30000, Active: true},
		{ProviderCode: "primary", Service: string(model.ServiceData), Code: "d3", Name: "5GB", Price: 100000, Active: false},
		{ProviderCode: "primary", Service: string(model.ServiceCable), Code: "c1", Name: "Compact", Price: 1250000, Active: true},
	}
	for _, p := range plans {
		require.NoError(t, tdb.rawDB.Create(p).Error)
	}

	got, err := repo.ListByService(ctx, model.ServiceData)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Cheapest first, inactive and other services excluded.
	assert.Equal(t, "d1", got[0].Code)
	assert.Equal(t, "d2", got[1].Code)
}

func TestProviderRepository_ListActive(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewProviderRepository(tdb.DB)
	ctx := context.Background()

	providers := []*ProviderEntity{
		{Code: "backup", Name: "Backup VTU", BaseURL: "https://backup.example.com", Priority: 20, Active: true, Services: "airtime,data"},
		{Code: "primary", Name: "Primary VTU", BaseURL: "https://primary.example.com", Priority: 10, Active: true, Services: "airtime,data,cable,electricity,exam-pin"},
		{Code: "retired", Name: "Retired VTU", BaseURL: "https://retired.example.com", Priority: 5, Active: false, Services: "airtime"},
	}
	for _, p := range providers {
		require.NoError(t, tdb.rawDB.Create(p).Error)
	}

	got, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "primary", got[0].Code)
	assert.Equal(t, "backup", got[1].Code)
	assert.True(t, got[0].Supports(model.ServiceExamPin))
	assert.False(t, got[1].Supports(model.ServiceCable))
}

func TestUserRepository_GetByID(t *testing.T) {
	tdb := setupTestDB(t)
	repo := NewUserRepository(tdb.DB)
	ctx := context.Background()

	user := &UserEntity{Email: "ada@example.com", PinHash: "$2a$10$abcdefghijklmnopqrstuv"}
	require.NoError(t, tdb.rawDB.Create(user).Error)

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.NotEmpty(t, got.PinHash)

	_, err = repo.GetByID(ctx, 999999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
