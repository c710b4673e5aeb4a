package marketplace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelsync/backend/internal/domain/platform"
	"github.com/channelsync/backend/internal/infrastructure/config"
)

func TestAdapterRegistry(t *testing.T) {
	ebay, err := NewEbayAdapter(NewEbayConfig("tok"))
	require.NoError(t, err)
	mercari, err := NewMercariAdapter(NewMercariConfig("key", "secret"))
	require.NoError(t, err)

	registry := NewAdapterRegistry(ebay, mercari)

	t.Run("resolves registered adapters", func(t *testing.T) {
		adapter, err := registry.Get(platform.CodeEbay)
		require.NoError(t, err)
		assert.Equal(t, platform.CodeEbay, adapter.Code())
	})

	t.Run("unknown code returns ErrAdapterNotRegistered", func(t *testing.T) {
		_, err := registry.Get(platform.CodePoshmark)
		assert.ErrorIs(t, err, platform.ErrAdapterNotRegistered)
	})

	t.Run("list preserves registration order", func(t *testing.T) {
		adapters := registry.List()
		require.Len(t, adapters, 2)
		assert.Equal(t, platform.CodeEbay, adapters[0].Code())
		assert.Equal(t, platform.CodeMercari, adapters[1].Code())
	})

	t.Run("order feed is a capability, not a requirement", func(t *testing.T) {
		ebayAdapter, _ := registry.Get(platform.CodeEbay)
		_, ok := ebayAdapter.(platform.OrderFeed)
		assert.True(t, ok)

		mercariAdapter, _ := registry.Get(platform.CodeMercari)
		_, ok = mercariAdapter.(platform.OrderFeed)
		assert.False(t, ok)
	})
}

func TestNewRegistryFromConfig(t *testing.T) {
	t.Run("builds only enabled adapters", func(t *testing.T) {
		cfg := &config.MarketplacesConfig{
			Ebay:    config.MarketplaceConfig{Enabled: true, APIKey: "tok"},
			Mercari: config.MarketplaceConfig{Enabled: true, APIKey: "key", Secret: "secret"},
		}

		registry, err := NewRegistryFromConfig(cfg)

		require.NoError(t, err)
		assert.Len(t, registry.List(), 2)
	})

	t.Run("misconfigured adapter fails fast", func(t *testing.T) {
		cfg := &config.MarketplacesConfig{
			Etsy: config.MarketplaceConfig{Enabled: true},
		}

		_, err := NewRegistryFromConfig(cfg)

		assert.ErrorIs(t, err, ErrEtsyConfigMissingAPIKey)
	})
}

func TestMercariConfig_Sign(t *testing.T) {
	config := NewMercariConfig("key", "secret")

	params := map[string]string{
		"method":  "items.list",
		"app_key": "key",
		"page":    "1",
	}

	sign1 := config.Sign(params)
	sign2 := config.Sign(params)
	assert.Equal(t, sign1, sign2)
	assert.Len(t, sign1, 64)

	params["page"] = "2"
	assert.NotEqual(t, sign1, config.Sign(params))
}
