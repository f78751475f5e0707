package ecommerce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/shared/valueobject"
	"github.com/erp/catalogsync/internal/infrastructure/httpclient"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
)

// ErrNoLocation is returned when the shop has no inventory location
var ErrNoLocation = errors.New("shopify: no location found")

// ShopifyClient implements integration.StorefrontCatalog on the Shopify Admin
// REST API. Variants are read once into a VariantCache and served from it
// until Reload.
type ShopifyClient struct {
	config   *ShopifyConfig
	executor *httpclient.Executor
	logger   *zap.Logger
	cache    *VariantCache
	pacer    *rate.Limiter

	loadMu sync.Mutex

	locationMu sync.Mutex
	locationID int64

	policy httpclient.Policy
	// linkPolicy paces image link retries
	linkPolicy httpclient.Policy
}

var _ integration.StorefrontCatalog = (*ShopifyClient)(nil)

// ClientOption configures a ShopifyClient
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger     *zap.Logger
	metrics    *telemetry.PlatformMetrics
	httpClient *http.Client
	sleeper    httpclient.Sleeper
	policy     *httpclient.Policy
	pacer      *rate.Limiter
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = l }
}

// WithMetrics sets the platform metrics
func WithMetrics(m *telemetry.PlatformMetrics) ClientOption {
	return func(o *clientOptions) { o.metrics = m }
}

// WithHTTPClient sets the HTTP client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithSleeper replaces the wait between rate limited attempts
func WithSleeper(s httpclient.Sleeper) ClientOption {
	return func(o *clientOptions) { o.sleeper = s }
}

// WithPolicy replaces the retry policy
func WithPolicy(p httpclient.Policy) ClientOption {
	return func(o *clientOptions) { o.policy = &p }
}

// WithPacer replaces the limiter spacing inventory tracking activations
func WithPacer(l *rate.Limiter) ClientOption {
	return func(o *clientOptions) { o.pacer = l }
}

// NewShopifyClient creates a Shopify client. No request is made until the
// first cache read.
func NewShopifyClient(config *ShopifyConfig, opts ...ClientOption) (*ShopifyClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := &clientOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	execOpts := []httpclient.Option{
		httpclient.WithLogger(o.logger),
		httpclient.WithMetrics(o.metrics),
		httpclient.WithHeader("X-Shopify-Access-Token", config.AccessToken),
	}
	if o.httpClient != nil {
		execOpts = append(execOpts, httpclient.WithHTTPClient(o.httpClient))
	} else {
		execOpts = append(execOpts, httpclient.WithHTTPClient(&http.Client{Timeout: config.Timeout}))
	}
	if o.sleeper != nil {
		execOpts = append(execOpts, httpclient.WithSleeper(o.sleeper))
	}
	policy := httpclient.DefaultPolicy()
	if o.policy != nil {
		policy = *o.policy
	}
	execOpts = append(execOpts, httpclient.WithPolicy(policy))

	pacer := o.pacer
	if pacer == nil {
		pacer = newTogglePacer(config.TogglePacing)
	}

	return &ShopifyClient{
		config:     config,
		executor:   httpclient.New(integration.PlatformCodeShopify, execOpts...),
		logger:     o.logger,
		cache:      NewVariantCache(),
		pacer:      pacer,
		policy:     policy,
		linkPolicy: httpclient.Policy{MaxAttempts: policy.MaxAttempts, RateLimitDelay: policy.RateLimitDelay / 3},
	}, nil
}

func newTogglePacer(every time.Duration) *rate.Limiter {
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

// Cache exposes the variant cache
func (c *ShopifyClient) Cache() *VariantCache {
	return c.cache
}

// ---------------------------------------------------------------------------
// Variant cache
// ---------------------------------------------------------------------------

// Reload rebuilds the variant cache from an empty state by walking every
// product page with since_id pagination until an empty page.
func (c *ShopifyClient) Reload(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	return c.reload(ctx)
}

func (c *ShopifyClient) reload(ctx context.Context) error {
	ctx, span := telemetry.Start(ctx, "shopify.load_variants")
	defer span.End()

	var (
		variants []integration.StorefrontVariant
		sinceID  int64
		pages    int
	)
	for {
		query := url.Values{
			"fields": {"id,variants"},
			"limit":  {strconv.Itoa(c.config.PageSize)},
		}
		if sinceID > 0 {
			query.Set("since_id", strconv.FormatInt(sinceID, 10))
		}

		resp, err := c.executor.Do(ctx, httpclient.Request{
			Method: http.MethodGet,
			URL:    c.config.AdminURL("products.json"),
			Query:  query,
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return fmt.Errorf("shopify: load variants: %w", err)
		}

		var page shopifyProductsResponse
		if err := resp.DecodeJSON(&page); err != nil {
			telemetry.RecordError(span, err)
			return fmt.Errorf("shopify: load variants: %w", err)
		}
		if len(page.Products) == 0 {
			break
		}
		pages++

		for _, product := range page.Products {
			for _, v := range product.Variants {
				sv, ok := v.toStorefrontVariant(product.ID)
				if !ok {
					continue
				}
				variants = append(variants, sv)
			}
		}
		sinceID = page.Products[len(page.Products)-1].ID
	}

	c.cache.Replace(variants)
	span.SetAttributes(attribute.Int("variants", c.cache.Len()), attribute.Int("pages", pages))
	c.logger.Info("Shopify variants cache loaded", zap.Int("count", c.cache.Len()))
	return nil
}

func (c *ShopifyClient) ensureLoaded(ctx context.Context) error {
	if c.cache.Loaded() {
		return nil
	}
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if c.cache.Loaded() {
		return nil
	}
	return c.reload(ctx)
}

// Lookup returns the cached variant of sku. The cache is loaded on first use
// only; a miss never triggers a reload.
func (c *ShopifyClient) Lookup(ctx context.Context, sku string) (*integration.StorefrontVariant, bool, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, false, err
	}
	v, ok := c.cache.Get(sku)
	if !ok {
		return nil, false, nil
	}
	return &v, true, nil
}

// VariantPrices returns the price of every cached SKU. SKUs whose storefront
// price could not be read are left out with a warning.
func (c *ShopifyClient) VariantPrices(ctx context.Context) (map[string]valueobject.Price, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	snapshot := c.cache.Snapshot()
	prices := make(map[string]valueobject.Price, len(snapshot))
	for sku, v := range snapshot {
		if !v.PriceKnown {
			c.logger.Warn("Unreadable Shopify price, variant left out of price comparison",
				zap.String("sku", sku),
				zap.Int64("variant_id", v.VariantID),
			)
			continue
		}
		prices[sku] = v.Price
	}
	return prices, nil
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// UpdatePrice sets the price of the variant of sku. An unknown SKU, a 422
// rejection and an exhausted rate limit are logged and reported as done.
func (c *ShopifyClient) UpdatePrice(ctx context.Context, sku string, price valueobject.Price) error {
	ctx, span := telemetry.Start(ctx, "shopify.update_price",
		telemetry.KeySKU.String(sku),
	)
	defer span.End()

	variant, ok, err := c.Lookup(ctx, sku)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if !ok {
		c.logger.Warn("Variant not found in Shopify", zap.String("sku", sku))
		return nil
	}

	resp, err := c.executor.Do(ctx, httpclient.Request{
		Method: http.MethodPut,
		URL:    c.config.AdminURL(fmt.Sprintf("variants/%d.json", variant.VariantID)),
		JSON: variantUpdateRequest{Variant: variantUpdate{
			ID:    variant.VariantID,
			Price: price.String(),
		}},
	})
	switch {
	case errors.Is(err, integration.ErrValidationRejected):
		c.logger.Error("Shopify rejected price update",
			zap.String("sku", sku),
			zap.Int64("variant_id", variant.VariantID),
			zap.ByteString("body", resp.Body),
		)
		return nil
	case errors.Is(err, integration.ErrRateLimited):
		c.logger.Warn("Shopify price update abandoned after rate limiting",
			zap.String("sku", sku),
			zap.Int64("variant_id", variant.VariantID),
		)
		return nil
	case err != nil:
		telemetry.RecordError(span, err)
		c.logger.Error("Failed to update price", zap.String("sku", sku), zap.Error(err))
		return fmt.Errorf("shopify: update price of %s: %w", sku, err)
	}

	c.cache.Patch(sku, func(v *integration.StorefrontVariant) {
		v.Price = price
		v.PriceKnown = true
	})
	c.logger.Info("Price updated successfully",
		zap.String("sku", sku),
		zap.String("price", price.String()),
	)
	return nil
}

// UpdateStock sets the available quantity of sku at the shop's first
// location. An unknown SKU and a 422 rejection are logged and reported as
// done.
func (c *ShopifyClient) UpdateStock(ctx context.Context, sku string, quantity int) error {
	ctx, span := telemetry.Start(ctx, "shopify.update_stock",
		telemetry.KeySKU.String(sku),
	)
	defer span.End()

	variant, ok, err := c.Lookup(ctx, sku)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if !ok {
		c.logger.Warn("Variant not found in Shopify", zap.String("sku", sku))
		return nil
	}
	if variant.InventoryItemID == 0 {
		c.logger.Error("No inventory item found for SKU", zap.String("sku", sku))
		return nil
	}

	locationID, err := c.location(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		c.logger.Error("Failed to update stock", zap.String("sku", sku), zap.Error(err))
		return err
	}

	resp, err := c.executor.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    c.config.AdminURL("inventory_levels/set.json"),
		JSON: inventorySetRequest{
			LocationID:      locationID,
			InventoryItemID: variant.InventoryItemID,
			Available:       quantity,
		},
	})
	switch {
	case errors.Is(err, integration.ErrValidationRejected):
		c.logger.Error("Shopify rejected inventory update",
			zap.String("sku", sku),
			zap.Int64("inventory_item_id", variant.InventoryItemID),
			zap.Int64("location_id", locationID),
			zap.ByteString("body", resp.Body),
		)
		return nil
	case errors.Is(err, integration.ErrRateLimited):
		c.logger.Warn("Shopify stock update abandoned after rate limiting", zap.String("sku", sku))
		return nil
	case err != nil:
		telemetry.RecordError(span, err)
		c.logger.Error("Failed to update stock", zap.String("sku", sku), zap.Error(err))
		return fmt.Errorf("shopify: update stock of %s: %w", sku, err)
	}

	c.logger.Info("Stock updated successfully",
		zap.String("sku", sku),
		zap.Int("quantity", quantity),
	)
	return nil
}

// retryingPolicy is the client policy extended to connection failures
func (c *ShopifyClient) retryingPolicy() httpclient.Policy {
	p := c.policy
	p.RetryTransportErrors = true
	return p
}

// location returns the shop's first location id, fetched once
func (c *ShopifyClient) location(ctx context.Context) (int64, error) {
	c.locationMu.Lock()
	defer c.locationMu.Unlock()
	if c.locationID != 0 {
		return c.locationID, nil
	}

	policy := c.retryingPolicy()
	resp, err := c.executor.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    c.config.AdminURL("locations.json"),
		Policy: &policy,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w: %v", integration.ErrDependencyUnavailable, ErrNoLocation, err)
	}

	var body shopifyLocationsResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return 0, fmt.Errorf("%w: %w: %v", integration.ErrDependencyUnavailable, ErrNoLocation, err)
	}
	if len(body.Locations) == 0 || body.Locations[0].ID == 0 {
		return 0, fmt.Errorf("%w: %w", integration.ErrDependencyUnavailable, ErrNoLocation)
	}

	c.locationID = body.Locations[0].ID
	return c.locationID, nil
}

// MapReferences returns the cached variants of the given SKUs that exist on
// the storefront. Untracked variants get inventory tracking enabled first,
// one activation per pacing interval. A variant whose activation is not
// confirmed by the response is left out.
func (c *ShopifyClient) MapReferences(ctx context.Context, skus []string) (map[string]integration.StorefrontVariant, error) {
	ctx, span := telemetry.Start(ctx, "shopify.map_references",
		telemetry.KeyBatchSize.Int(len(skus)),
	)
	defer span.End()

	if err := c.ensureLoaded(ctx); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	mapping := make(map[string]integration.StorefrontVariant)
	for _, sku := range skus {
		variant, ok := c.cache.Get(sku)
		if !ok {
			continue
		}
		if variant.InventoryManagement.IsTracked() {
			mapping[sku] = variant
			continue
		}

		if err := c.pacer.Wait(ctx); err != nil {
			return nil, err
		}

		updated, include, err := c.enableTracking(ctx, variant)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if include {
			mapping[sku] = updated
		}
	}

	span.SetAttributes(attribute.Int("mapped", len(mapping)))
	return mapping, nil
}

// enableTracking switches a variant to Shopify-managed inventory. It returns
// the variant to map and whether to map it at all. A failed request keeps the
// variant as it is; only a response that does not confirm tracking drops it.
// Only a context error is returned as error.
func (c *ShopifyClient) enableTracking(ctx context.Context, variant integration.StorefrontVariant) (integration.StorefrontVariant, bool, error) {
	sku := variant.SKU.String()
	policy := c.retryingPolicy()

	resp, err := c.executor.Do(ctx, httpclient.Request{
		Method: http.MethodPut,
		URL:    c.config.AdminURL(fmt.Sprintf("variants/%d.json", variant.VariantID)),
		JSON: variantUpdateRequest{Variant: variantUpdate{
			ID:                  variant.VariantID,
			InventoryManagement: shopifyInventoryManaged,
		}},
		Policy: &policy,
	})
	if err != nil {
		if ctx.Err() != nil {
			return variant, false, ctx.Err()
		}
		c.logger.Warn("Could not enable inventory tracking, mapping variant as is",
			zap.String("sku", sku),
			zap.Int64("variant_id", variant.VariantID),
			zap.Error(err),
		)
		return variant, true, nil
	}

	var body shopifyVariantResponse
	if err := resp.DecodeJSON(&body); err != nil || !body.Variant.tracked() {
		c.logger.Warn("Inventory tracking activation not confirmed, skipping variant",
			zap.String("sku", sku),
			zap.Int64("variant_id", variant.VariantID),
		)
		return variant, false, nil
	}

	updated, _ := c.cache.Patch(sku, func(v *integration.StorefrontVariant) {
		v.InventoryManagement = integration.InventoryTracked
	})
	c.logger.Debug("Inventory tracking enabled", zap.String("sku", sku))
	return updated, true, nil
}

// ---------------------------------------------------------------------------
// Product lookup
// ---------------------------------------------------------------------------

// FindProductByTitle returns the first product with exactly this title, or
// nil when none exists.
func (c *ShopifyClient) FindProductByTitle(ctx context.Context, title string) (*integration.ProductSummary, error) {
	resp, err := c.executor.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    c.config.AdminURL("products.json"),
		Query: url.Values{
			"title":  {title},
			"limit":  {"1"},
			"fields": {"id,handle,title"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("shopify: search product by title: %w", err)
	}

	var body shopifyProductsResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, fmt.Errorf("shopify: search product by title: %w", err)
	}
	if len(body.Products) == 0 {
		return nil, nil
	}

	p := body.Products[0]
	return &integration.ProductSummary{ID: p.ID, Handle: p.Handle, Title: p.Title}, nil
}
