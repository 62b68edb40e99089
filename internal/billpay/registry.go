package billpay

import (
	"context"
	"sync"
	"time"

	"github.com/nimasrn/vtu-gateway/internal/model"
	"github.com/nimasrn/vtu-gateway/pkg/logger"
)

// ProviderStore is the slice of the provider repository the registry
// needs.
type ProviderStore interface {
	ListActive(ctx context.Context) ([]*model.Provider, error)
}

// ClientFactory builds a Client from a provider row. Swapped for a fake
// in tests.
type ClientFactory func(p *model.Provider) Client

// Registry holds the live provider clients, ordered by priority. It is
// read-mostly: purchase requests only take the read lock, Reload swaps
// the whole view under the write lock.
type Registry struct {
	store    ProviderStore
	factory  ClientFactory
	fallback Client

	mu        sync.RWMutex
	providers []*model.Provider
	clients   map[string]Client
}

type RegistryOption func(*Registry)

// WithClientFactory overrides how clients are built from rows.
func WithClientFactory(f ClientFactory) RegistryOption {
	return func(r *Registry) {
		r.factory = f
	}
}

// WithFallback sets the legacy single-provider client used when no
// configured row supports a service.
func WithFallback(c Client) RegistryOption {
	return func(r *Registry) {
		r.fallback = c
	}
}

func NewRegistry(store ProviderStore, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:   store,
		clients: make(map[string]Client),
		factory: func(p *model.Provider) Client {
			return NewRESTClient(p)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reload replaces the registry view with the current active provider
// rows. Existing clients are reused when the row did not change, so
// connection pools survive a reload.
func (r *Registry) Reload(ctx context.Context) error {
	providers, err := r.store.ListActive(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	clients := make(map[string]Client, len(providers))
	for _, p := range providers {
		if existing, ok := r.clients[p.Code]; ok && r.unchanged(p) {
			clients[p.Code] = existing
			continue
		}
		clients[p.Code] = r.factory(p)
	}

	r.providers = providers
	r.clients = clients

	logger.Info("provider registry reloaded", "providers", len(providers))
	return nil
}

func (r *Registry) unchanged(p *model.Provider) bool {
	for _, old := range r.providers {
		if old.Code == p.Code {
			return old.BaseURL == p.BaseURL && old.APIKey == p.APIKey
		}
	}
	return false
}

// PreferredFor returns the active client with the lowest priority number
// that supports the service. Selection is deterministic and stateless;
// when no configured provider matches, the legacy fallback client is
// returned if one is set.
func (r *Registry) PreferredFor(service model.ServiceType) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// providers are already priority-ordered by the store
	for _, p := range r.providers {
		if !p.Supports(service) {
			continue
		}
		if c, ok := r.clients[p.Code]; ok {
			return c, nil
		}
	}

	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, ErrNoProvider
}

// Get returns the client for a specific provider code. Used by status
// queries that must hit the provider that handled the original
// purchase.
func (r *Registry) Get(code string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.clients[code]; ok {
		return c, true
	}
	if r.fallback != nil && r.fallback.Code() == code {
		return r.fallback, true
	}
	return nil, false
}

// Providers returns a snapshot of the configured rows for read-only
// surfaces.
func (r *Registry) Providers() []*model.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// Run reloads the registry on an interval until the context is
// canceled. A failed reload keeps the previous view.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Reload(ctx); err != nil {
				logger.Warn("provider registry reload failed", "error", err)
			}
		}
	}
}
