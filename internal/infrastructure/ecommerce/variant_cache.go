package ecommerce

import (
	"sync"

	"github.com/erp/catalogsync/internal/domain/integration"
)

// VariantCache holds the storefront variants keyed by SKU. It starts unloaded;
// Replace marks it loaded.
type VariantCache struct {
	mu     sync.RWMutex
	loaded bool
	bySKU  map[string]integration.StorefrontVariant
}

// NewVariantCache creates an empty, unloaded cache
func NewVariantCache() *VariantCache {
	return &VariantCache{bySKU: make(map[string]integration.StorefrontVariant)}
}

// Replace swaps the whole content for variants. A SKU listed twice keeps the
// last variant.
func (c *VariantCache) Replace(variants []integration.StorefrontVariant) {
	next := make(map[string]integration.StorefrontVariant, len(variants))
	for _, v := range variants {
		next[v.SKU.String()] = v
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.bySKU = next
	c.loaded = true
}

// Get returns the variant of sku
func (c *VariantCache) Get(sku string) (integration.StorefrontVariant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.bySKU[sku]
	return v, ok
}

// Patch applies fn to the cached variant of sku and returns the result
func (c *VariantCache) Patch(sku string, fn func(*integration.StorefrontVariant)) (integration.StorefrontVariant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.bySKU[sku]
	if !ok {
		return integration.StorefrontVariant{}, false
	}
	fn(&v)
	c.bySKU[sku] = v
	return v, true
}

// Snapshot returns a copy of the content
func (c *VariantCache) Snapshot() map[string]integration.StorefrontVariant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]integration.StorefrontVariant, len(c.bySKU))
	for k, v := range c.bySKU {
		out[k] = v
	}
	return out
}

// Loaded reports whether a full load completed
func (c *VariantCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Len returns the number of cached SKUs
func (c *VariantCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bySKU)
}
