package marketplace

import (
	"errors"
	"time"
)

// EbayConfig holds configuration for the eBay Sell API integration
type EbayConfig struct {
	// Token is the OAuth user access token
	Token string
	// APIBaseURL is the base URL for the eBay API (production or sandbox)
	APIBaseURL string
	// IsSandbox indicates if this is a sandbox environment
	IsSandbox bool
	// Timeout is the HTTP request timeout
	Timeout time.Duration
}

const (
	// EbayProductionAPIURL is the production API endpoint
	EbayProductionAPIURL = "https://api.ebay.com"
	// EbaySandboxAPIURL is the sandbox API endpoint
	EbaySandboxAPIURL = "https://api.sandbox.ebay.com"
)

// ErrEbayConfigMissingToken indicates a missing OAuth token
var ErrEbayConfigMissingToken = errors.New("ebay: access token is required")

// NewEbayConfig creates a new eBay configuration with defaults
func NewEbayConfig(token string) *EbayConfig {
	return &EbayConfig{
		Token:      token,
		APIBaseURL: EbayProductionAPIURL,
		IsSandbox:  false,
		Timeout:    30 * time.Second,
	}
}

// Validate validates the eBay configuration
func (c *EbayConfig) Validate() error {
	if c.Token == "" {
		return ErrEbayConfigMissingToken
	}
	if c.APIBaseURL == "" {
		if c.IsSandbox {
			c.APIBaseURL = EbaySandboxAPIURL
		} else {
			c.APIBaseURL = EbayProductionAPIURL
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}
