package marketplace

import (
	"errors"
	"time"
)

// EtsyConfig holds configuration for the Etsy Open API v3 integration
type EtsyConfig struct {
	// APIKey is the application keystring from the Etsy developer portal
	APIKey string
	// AccessToken is the OAuth 2.0 access token
	AccessToken string
	// ShopID is the numeric shop identifier
	ShopID string
	// APIBaseURL is the base URL for the Etsy API
	APIBaseURL string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
}

// EtsyProductionAPIURL is the production API endpoint
const EtsyProductionAPIURL = "https://openapi.etsy.com"

// Errors for Etsy configuration
var (
	ErrEtsyConfigMissingAPIKey      = errors.New("etsy: api key is required")
	ErrEtsyConfigMissingAccessToken = errors.New("etsy: access token is required")
	ErrEtsyConfigMissingShopID      = errors.New("etsy: shop ID is required")
)

// NewEtsyConfig creates a new Etsy configuration with defaults
func NewEtsyConfig(apiKey, accessToken, shopID string) *EtsyConfig {
	return &EtsyConfig{
		APIKey:      apiKey,
		AccessToken: accessToken,
		ShopID:      shopID,
		APIBaseURL:  EtsyProductionAPIURL,
		Timeout:     30 * time.Second,
	}
}

// Validate validates the Etsy configuration
func (c *EtsyConfig) Validate() error {
	if c.APIKey == "" {
		return ErrEtsyConfigMissingAPIKey
	}
	if c.AccessToken == "" {
		return ErrEtsyConfigMissingAccessToken
	}
	if c.ShopID == "" {
		return ErrEtsyConfigMissingShopID
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = EtsyProductionAPIURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}
