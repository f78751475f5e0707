package ecommerce

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// ShopifyAPIVersion is the Admin REST API version the client speaks
	ShopifyAPIVersion = "2024-10"
	// ShopifyPageSize is the largest page the products listing accepts
	ShopifyPageSize = 250
	// DefaultTogglePacing spaces inventory tracking activations
	DefaultTogglePacing = 300 * time.Millisecond
)

// Errors for Shopify configuration
var (
	ErrShopifyConfigMissingShop        = errors.New("shopify: shop domain or API URL is required")
	ErrShopifyConfigMissingAccessToken = errors.New("shopify: access token is required")
)

// ShopifyConfig holds configuration for the Shopify Admin API
type ShopifyConfig struct {
	// ShopDomain is the myshopify domain, e.g. "acme.myshopify.com"
	ShopDomain string
	// APIBaseURL overrides the https://{ShopDomain} origin
	APIBaseURL string
	// AccessToken is the Admin API access token of the private app
	AccessToken string
	// APIVersion is the Admin API version segment
	APIVersion string
	// PageSize is the products listing page size
	PageSize int
	// TogglePacing is the minimum gap between two inventory tracking activations
	TogglePacing time.Duration
	// Timeout is the per-request HTTP timeout
	Timeout time.Duration
}

// NewShopifyConfig creates a Shopify configuration with defaults
func NewShopifyConfig(shopDomain, accessToken string) *ShopifyConfig {
	return &ShopifyConfig{
		ShopDomain:   shopDomain,
		AccessToken:  accessToken,
		APIVersion:   ShopifyAPIVersion,
		PageSize:     ShopifyPageSize,
		TogglePacing: DefaultTogglePacing,
		Timeout:      30 * time.Second,
	}
}

// Validate validates the configuration and fills defaults
func (c *ShopifyConfig) Validate() error {
	c.AccessToken = strings.TrimSpace(c.AccessToken)
	if c.AccessToken == "" {
		return ErrShopifyConfigMissingAccessToken
	}
	if c.APIBaseURL == "" {
		domain := strings.TrimSpace(c.ShopDomain)
		if domain == "" {
			return ErrShopifyConfigMissingShop
		}
		if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
			domain = "https://" + domain
		}
		c.APIBaseURL = domain
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if c.APIVersion == "" {
		c.APIVersion = ShopifyAPIVersion
	}
	if c.PageSize <= 0 || c.PageSize > ShopifyPageSize {
		c.PageSize = ShopifyPageSize
	}
	if c.TogglePacing < 0 {
		c.TogglePacing = DefaultTogglePacing
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

// AdminURL returns the Admin API URL of a resource path such as "products.json"
func (c *ShopifyConfig) AdminURL(path string) string {
	return fmt.Sprintf("%s/admin/api/%s/%s", c.APIBaseURL, c.APIVersion, strings.TrimLeft(path, "/"))
}
