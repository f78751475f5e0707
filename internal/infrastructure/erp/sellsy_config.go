// Package erp contains the adapter to the Sellsy ERP API.
package erp

import (
	"errors"
	"strings"
	"time"
)

const (
	// SellsyAPIURL is the production API endpoint
	SellsyAPIURL = "https://api.sellsy.com/v2"
	// SellsyTokenURL is the OAuth2 token endpoint
	SellsyTokenURL = "https://login.sellsy.com/oauth2/access-tokens"
	// DefaultPageSize is the item listing page size
	DefaultPageSize = 100
)

// Errors for Sellsy configuration
var (
	ErrSellsyConfigMissingClientID     = errors.New("sellsy: client id is required")
	ErrSellsyConfigMissingClientSecret = errors.New("sellsy: client secret is required")
	ErrSellsyConfigInvalidPageSize     = errors.New("sellsy: page size must be positive")
)

// SellsyConfig holds configuration for the Sellsy API integration
type SellsyConfig struct {
	// APIBaseURL is the base URL of the REST API
	APIBaseURL string
	// TokenURL is the client-credentials token endpoint
	TokenURL string
	// ClientID is the API client identifier
	ClientID string
	// ClientSecret is the API client secret
	ClientSecret string
	// PageSize is the number of items requested per listing page
	PageSize int
	// TokenTTL is used when the token response carries no expires_in
	TokenTTL time.Duration
	// Timeout is the per-request HTTP timeout
	Timeout time.Duration
}

// NewSellsyConfig creates a new Sellsy configuration with defaults
func NewSellsyConfig(clientID, clientSecret string) *SellsyConfig {
	return &SellsyConfig{
		APIBaseURL:   SellsyAPIURL,
		TokenURL:     SellsyTokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		PageSize:     DefaultPageSize,
		TokenTTL:     time.Hour,
		Timeout:      30 * time.Second,
	}
}

// Validate validates the configuration and fills missing optional values
func (c *SellsyConfig) Validate() error {
	if c.ClientID == "" {
		return ErrSellsyConfigMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrSellsyConfigMissingClientSecret
	}
	if c.PageSize < 0 {
		return ErrSellsyConfigInvalidPageSize
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = SellsyAPIURL
	}
	if c.TokenURL == "" {
		c.TokenURL = SellsyTokenURL
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	return nil
}
