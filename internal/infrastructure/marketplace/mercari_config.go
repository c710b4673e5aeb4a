package marketplace

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"
)

// MercariConfig holds configuration for the Mercari Shops API integration
type MercariConfig struct {
	// AppKey is the application key from the Mercari developer portal
	AppKey string
	// AppSecret is the application secret used for request signing
	AppSecret string
	// APIBaseURL is the base URL for the Mercari API
	APIBaseURL string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
}

// MercariProductionAPIURL is the production API endpoint
const MercariProductionAPIURL = "https://api.mercari.com"

// Errors for Mercari configuration
var (
	ErrMercariConfigMissingAppKey    = errors.New("mercari: app key is required")
	ErrMercariConfigMissingAppSecret = errors.New("mercari: app secret is required")
)

// NewMercariConfig creates a new Mercari configuration with defaults
func NewMercariConfig(appKey, appSecret string) *MercariConfig {
	return &MercariConfig{
		AppKey:     appKey,
		AppSecret:  appSecret,
		APIBaseURL: MercariProductionAPIURL,
		Timeout:    30 * time.Second,
	}
}

// Validate validates the Mercari configuration
func (c *MercariConfig) Validate() error {
	if c.AppKey == "" {
		return ErrMercariConfigMissingAppKey
	}
	if c.AppSecret == "" {
		return ErrMercariConfigMissingAppSecret
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = MercariProductionAPIURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

// Sign generates the HMAC-SHA256 request signature.
// Parameters are sorted by key and concatenated as
// secret + key1value1key2value2... + secret before hashing.
func (c *MercariConfig) Sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "sign" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString(c.AppSecret)
	for _, k := range keys {
		builder.WriteString(k)
		builder.WriteString(params[k])
	}
	builder.WriteString(c.AppSecret)

	h := hmac.New(sha256.New, []byte(c.AppSecret))
	h.Write([]byte(builder.String()))
	return hex.EncodeToString(h.Sum(nil))
}
