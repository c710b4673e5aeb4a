package marketplace

import (
	"fmt"

	"github.com/channelsync/backend/internal/domain/platform"
	"github.com/channelsync/backend/internal/infrastructure/config"
)

// AdapterRegistry is the concrete registry of configured marketplace adapters
type AdapterRegistry struct {
	adapters map[platform.Code]platform.Adapter
	order    []platform.Code
}

// NewAdapterRegistry creates a registry from the given adapters.
// Registration order is preserved by List.
func NewAdapterRegistry(adapters ...platform.Adapter) *AdapterRegistry {
	registry := &AdapterRegistry{
		adapters: make(map[platform.Code]platform.Adapter, len(adapters)),
	}
	for _, adapter := range adapters {
		code := adapter.Code()
		if _, exists := registry.adapters[code]; exists {
			continue
		}
		registry.adapters[code] = adapter
		registry.order = append(registry.order, code)
	}
	return registry
}

// NewRegistryFromConfig builds adapters for every marketplace enabled in the
// configuration
func NewRegistryFromConfig(cfg *config.MarketplacesConfig) (*AdapterRegistry, error) {
	var adapters []platform.Adapter

	if cfg.Ebay.Enabled {
		ebayConfig := NewEbayConfig(cfg.Ebay.APIKey)
		if cfg.Ebay.BaseURL != "" {
			ebayConfig.APIBaseURL = cfg.Ebay.BaseURL
		}
		ebayConfig.Timeout = cfg.Ebay.Timeout
		adapter, err := NewEbayAdapter(ebayConfig)
		if err != nil {
			return nil, fmt.Errorf("ebay adapter: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	if cfg.Etsy.Enabled {
		etsyConfig := NewEtsyConfig(cfg.Etsy.APIKey, cfg.Etsy.Secret, cfg.Etsy.ShopID)
		if cfg.Etsy.BaseURL != "" {
			etsyConfig.APIBaseURL = cfg.Etsy.BaseURL
		}
		etsyConfig.Timeout = cfg.Etsy.Timeout
		adapter, err := NewEtsyAdapter(etsyConfig)
		if err != nil {
			return nil, fmt.Errorf("etsy adapter: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	if cfg.Mercari.Enabled {
		mercariConfig := NewMercariConfig(cfg.Mercari.APIKey, cfg.Mercari.Secret)
		if cfg.Mercari.BaseURL != "" {
			mercariConfig.APIBaseURL = cfg.Mercari.BaseURL
		}
		mercariConfig.Timeout = cfg.Mercari.Timeout
		adapter, err := NewMercariAdapter(mercariConfig)
		if err != nil {
			return nil, fmt.Errorf("mercari adapter: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	if cfg.Poshmark.Enabled {
		poshmarkConfig := NewPoshmarkConfig(cfg.Poshmark.APIKey)
		if cfg.Poshmark.BaseURL != "" {
			poshmarkConfig.APIBaseURL = cfg.Poshmark.BaseURL
		}
		poshmarkConfig.Timeout = cfg.Poshmark.Timeout
		adapter, err := NewPoshmarkAdapter(poshmarkConfig)
		if err != nil {
			return nil, fmt.Errorf("poshmark adapter: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	return NewAdapterRegistry(adapters...), nil
}

// Get returns the adapter for the given marketplace code
func (r *AdapterRegistry) Get(code platform.Code) (platform.Adapter, error) {
	adapter, ok := r.adapters[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", platform.ErrAdapterNotRegistered, code)
	}
	return adapter, nil
}

// List returns all registered adapters in registration order
func (r *AdapterRegistry) List() []platform.Adapter {
	adapters := make([]platform.Adapter, 0, len(r.order))
	for _, code := range r.order {
		adapters = append(adapters, r.adapters[code])
	}
	return adapters
}

// Ensure AdapterRegistry implements Registry
var _ platform.Registry = (*AdapterRegistry)(nil)
