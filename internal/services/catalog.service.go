package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nimasrn/vtu-gateway/internal/billpay"
	"github.com/nimasrn/vtu-gateway/internal/model"
	"github.com/nimasrn/vtu-gateway/pkg/logger"
	"github.com/nimasrn/vtu-gateway/pkg/redis"
)

const defaultCatalogTTL = 10 * time.Minute

type PlanLister interface {
	ListByService(ctx context.Context, svc model.ServiceType) ([]*model.Plan, error)
}

// CatalogService serves the read-only inventory surface: networks,
// billers, plans. Provider answers are cached in redis; upstream
// inventories change rarely and the calls are slow.
type CatalogService struct {
	registry ProviderSelector
	plans    PlanLister
	cache    redis.RedisAdapter
	ttl      time.Duration
}

func NewCatalogService(registry ProviderSelector, plans PlanLister, cache redis.RedisAdapter, ttl time.Duration) *CatalogService {
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	return &CatalogService{
		registry: registry,
		plans:    plans,
		cache:    cache,
		ttl:      ttl,
	}
}

func (s *CatalogService) Networks(ctx context.Context) ([]billpay.Network, error) {
	var out []billpay.Network
	err := s.cached(ctx, "catalog:networks", &out, func(ctx context.Context, c billpay.Client) (interface{}, error) {
		return c.Networks(ctx)
	}, model.ServiceAirtime)
	return out, err
}

func (s *CatalogService) CableProviders(ctx context.Context) ([]billpay.Biller, error) {
	var out []billpay.Biller
	err := s.cached(ctx, "catalog:cable:providers", &out, func(ctx context.Context, c billpay.Client) (interface{}, error) {
		return c.CableProviders(ctx)
	}, model.ServiceCable)
	return out, err
}

func (s *CatalogService) ElectricityProviders(ctx context.Context) ([]billpay.Biller, error) {
	var out []billpay.Biller
	err := s.cached(ctx, "catalog:electricity:providers", &out, func(ctx context.Context, c billpay.Client) (interface{}, error) {
		return c.ElectricityProviders(ctx)
	}, model.ServiceElectricity)
	return out, err
}

func (s *CatalogService) ExamProviders(ctx context.Context) ([]billpay.Biller, error) {
	var out []billpay.Biller
	err := s.cached(ctx, "catalog:exam:providers", &out, func(ctx context.Context, c billpay.Client) (interface{}, error) {
		return c.ExamProviders(ctx)
	}, model.ServiceExamPin)
	return out, err
}

func (s *CatalogService) CablePlans(ctx context.Context, cableProvider string) ([]billpay.CablePlan, error) {
	var out []billpay.CablePlan
	err := s.cached(ctx, "catalog:cable:plans:"+cableProvider, &out, func(ctx context.Context, c billpay.Client) (interface{}, error) {
		return c.CablePlans(ctx, cableProvider)
	}, model.ServiceCable)
	return out, err
}

// Plans lists the platform's own stored plans; these are the prices
// purchases actually use, so they are never cached through redis.
func (s *CatalogService) Plans(ctx context.Context, svc model.ServiceType) ([]*model.Plan, error) {
	return s.plans.ListByService(ctx, svc)
}

type inventoryCall func(ctx context.Context, c billpay.Client) (interface{}, error)

func (s *CatalogService) cached(ctx context.Context, key string, out interface{}, call inventoryCall, svc model.ServiceType) error {
	if s.cache != nil {
		if data, err := s.cache.Get(key); err == nil && len(data) > 0 {
			if err := json.Unmarshal(data, out); err == nil {
				return nil
			}
			// Poisoned entry, fall through to the provider.
			logger.Warn("dropping unreadable catalog cache entry", "key", key)
		}
	}

	client, err := s.registry.PreferredFor(svc)
	if err != nil {
		return err
	}
	fresh, err := call(ctx, client)
	if err != nil {
		return err
	}

	data, err := json.Marshal(fresh)
	if err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Set(key, data, s.ttl); err != nil {
			logger.Warn("failed to cache catalog entry", "key", key, "error", err)
		}
	}
	return json.Unmarshal(data, out)
}
