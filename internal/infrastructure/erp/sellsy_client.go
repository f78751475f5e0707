package erp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/shared/valueobject"
	"github.com/erp/catalogsync/internal/infrastructure/httpclient"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
)

// SellsyClient implements integration.ERPCatalog on the Sellsy REST API
type SellsyClient struct {
	config   *SellsyConfig
	executor *httpclient.Executor
	logger   *zap.Logger
}

var _ integration.ERPCatalog = (*SellsyClient)(nil)

// ClientOption configures a SellsyClient
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger     *zap.Logger
	metrics    *telemetry.PlatformMetrics
	httpClient *http.Client
	sleeper    httpclient.Sleeper
	policy     *httpclient.Policy
	authorizer httpclient.Authorizer
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = l }
}

// WithMetrics sets the platform metrics
func WithMetrics(m *telemetry.PlatformMetrics) ClientOption {
	return func(o *clientOptions) { o.metrics = m }
}

// WithHTTPClient sets the HTTP client used for both token and API calls
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

// WithAuthorizer replaces the client-credentials token provider
func WithAuthorizer(a httpclient.Authorizer) ClientOption {
	return func(o *clientOptions) { o.authorizer = a }
}

// NewSellsyClient creates a client authenticating with a TokenProvider
func NewSellsyClient(config *SellsyConfig, opts ...ClientOption) (*SellsyClient, error) {
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
	}
	if o.httpClient != nil {
		execOpts = append(execOpts, httpclient.WithHTTPClient(o.httpClient))
	} else {
		execOpts = append(execOpts, httpclient.WithHTTPClient(&http.Client{Timeout: config.Timeout}))
	}
	if o.sleeper != nil {
		execOpts = append(execOpts, httpclient.WithSleeper(o.sleeper))
	}
	if o.policy != nil {
		execOpts = append(execOpts, httpclient.WithPolicy(*o.policy))
	}

	authorizer := o.authorizer
	if authorizer == nil {
		tokenExec := httpclient.New(integration.PlatformCodeSellsy, execOpts...)
		authorizer = NewTokenProvider(config, tokenExec, o.logger)
	}

	return &SellsyClient{
		config:   config,
		executor: httpclient.New(integration.PlatformCodeSellsy, append(execOpts, httpclient.WithAuthorizer(authorizer))...),
		logger:   o.logger,
	}, nil
}

// ListItems walks the item listing with limit/offset pagination and returns
// the product-kind items in discovery order. The offset advances by the raw
// page length so pages made mostly of services still move forward.
func (c *SellsyClient) ListItems(ctx context.Context) ([]integration.CatalogItem, error) {
	ctx, span := telemetry.Start(ctx, "sellsy.list_items")
	defer span.End()

	limit := c.config.PageSize
	items := make([]integration.CatalogItem, 0)
	offset := 0

	for {
		resp, err := c.executor.Do(ctx, httpclient.Request{
			Method: http.MethodGet,
			URL:    c.config.APIBaseURL + "/items",
			Query: url.Values{
				"limit":  {strconv.Itoa(limit)},
				"offset": {strconv.Itoa(offset)},
			},
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("sellsy: list items at offset %d: %w", offset, err)
		}

		page, err := decodeItemsPage(resp.Body)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if page.Shape == envelopeUnrecognized {
			c.logger.Warn("Unrecognized Sellsy items envelope, treating page as empty",
				zap.Int("offset", offset),
			)
		}

		rawLen := len(page.Items)
		for _, raw := range page.Items {
			if !raw.IsProduct() {
				continue
			}
			item, err := raw.toCatalogItem()
			if err != nil {
				c.logger.Warn("Skipping Sellsy product without reference",
					zap.Int64("item_id", int64(raw.ID)),
					zap.String("name", raw.Name),
				)
				continue
			}
			items = append(items, item)
		}

		c.logger.Debug("Fetched Sellsy items page",
			zap.Int("offset", offset),
			zap.Int("raw_count", rawLen),
			zap.String("envelope", page.Shape.String()),
		)

		offset += rawLen
		if rawLen == 0 || rawLen < limit {
			break
		}
	}

	span.SetAttributes(attribute.Int("items", len(items)))
	c.logger.Info("Fetched Sellsy catalog", zap.Int("products", len(items)))
	return items, nil
}

// UpdateReferencePrice writes the sale reference price of an item
func (c *SellsyClient) UpdateReferencePrice(ctx context.Context, itemID int64, price valueobject.Price) error {
	return c.updateItem(ctx, itemID, itemUpdate{ReferencePrice: price.String()})
}

// UpdatePurchaseAmount writes the purchase price of an item
func (c *SellsyClient) UpdatePurchaseAmount(ctx context.Context, itemID int64, price valueobject.Price) error {
	return c.updateItem(ctx, itemID, itemUpdate{PurchaseAmount: price.String()})
}

func (c *SellsyClient) updateItem(ctx context.Context, itemID int64, body itemUpdate) error {
	ctx, span := telemetry.Start(ctx, "sellsy.update_item",
		telemetry.KeyItemID.Int64(itemID),
	)
	defer span.End()

	_, err := c.executor.Do(ctx, httpclient.Request{
		Method: http.MethodPut,
		URL:    fmt.Sprintf("%s/items/%d", c.config.APIBaseURL, itemID),
		JSON:   body,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		c.logger.Error("Failed to update Sellsy item",
			zap.Int64("item_id", itemID),
			zap.Error(err),
		)
		return fmt.Errorf("sellsy: update item %d: %w", itemID, err)
	}
	return nil
}
