package ecommerce

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/httpclient"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
)

// Create publishes record as a draft product. Any rejection of the creation
// call itself, including an exhausted rate limit, is a failure. After a
// successful creation the variant cache is reloaded and variant images are
// linked on a best-effort basis; link problems are reported in
// CreatedProduct.LinkFailures.
func (c *ShopifyClient) Create(ctx context.Context, record *integration.NormalizedProductRecord) (*integration.CreatedProduct, error) {
	ctx, span := telemetry.Start(ctx, "shopify.create_product")
	defer span.End()

	draft := record.Normalize()
	resp, err := c.executor.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    c.config.AdminURL("products.json"),
		JSON:   buildProductPayload(draft),
	})
	if err != nil {
		telemetry.RecordError(span, err)
		fields := []zap.Field{zap.String("title", draft.Title), zap.Error(err)}
		if resp != nil {
			fields = append(fields, zap.ByteString("body", resp.Body))
		}
		c.logger.Error("Failed to create product", fields...)
		return nil, fmt.Errorf("shopify: create product %q: %w", draft.Title, err)
	}

	var body shopifyProductResponse
	if err := resp.DecodeJSON(&body); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("shopify: create product %q: %w", draft.Title, err)
	}
	product := body.Product

	created := &integration.CreatedProduct{
		ID:          product.ID,
		Handle:      product.Handle,
		Title:       product.Title,
		ImagesCount: len(product.Images),
		Variants:    make([]integration.CreatedVariant, 0, len(product.Variants)),
	}
	for _, v := range product.Variants {
		created.Variants = append(created.Variants, integration.CreatedVariant{ID: v.ID, SKU: v.SKU})
	}
	span.SetAttributes(telemetry.KeyProductID.Int64(product.ID))
	c.logger.Info("Product created successfully",
		zap.String("title", draft.Title),
		zap.Int64("shopify_id", product.ID),
	)

	if err := c.Reload(ctx); err != nil {
		c.logger.Warn("Failed to refresh variants cache after creation",
			zap.Int64("product_id", product.ID),
			zap.Error(err),
		)
	}

	created.LinkFailures = c.linkVariantImages(ctx, product, draft)
	return created, nil
}

// linkVariantImages attaches each variant image: an image already on the
// product is updated with the variant id, otherwise a new image scoped to the
// variant is added.
func (c *ShopifyClient) linkVariantImages(ctx context.Context, product shopifyProduct, draft integration.ProductDraft) []integration.ImageLinkFailure {
	var failures []integration.ImageLinkFailure
	if product.ID == 0 {
		return failures
	}

	created := integration.CreatedProduct{}
	for _, v := range product.Variants {
		created.Variants = append(created.Variants, integration.CreatedVariant{ID: v.ID, SKU: v.SKU})
	}

	for _, dv := range draft.VariantImages() {
		if dv.SKU == "" {
			continue
		}
		fail := func(variantID int64, reason string) {
			c.logger.Warn("Failed to associate image to variant",
				zap.Int64("product_id", product.ID),
				zap.String("sku", dv.SKU),
				zap.Int64("variant_id", variantID),
				zap.String("reason", reason),
			)
			failures = append(failures, integration.ImageLinkFailure{
				VariantSKU: dv.SKU,
				VariantID:  variantID,
				ImageSrc:   dv.Image,
				Reason:     reason,
			})
		}

		variantID, ok := created.VariantBySKU(dv.SKU)
		if !ok {
			fail(0, "variant not found in created product")
			continue
		}

		var req httpclient.Request
		if img, found := matchImage(product.Images, dv.Image); found {
			req = httpclient.Request{
				Method: http.MethodPut,
				URL:    c.config.AdminURL(fmt.Sprintf("products/%d/images/%d.json", product.ID, img.ID)),
				JSON:   imageRequest{Image: shopifyImage{ID: img.ID, VariantIDs: []int64{variantID}}},
			}
		} else {
			req = httpclient.Request{
				Method: http.MethodPost,
				URL:    c.config.AdminURL(fmt.Sprintf("products/%d/images.json", product.ID)),
				JSON:   imageRequest{Image: shopifyImage{Src: dv.Image, VariantIDs: []int64{variantID}}},
			}
		}
		policy := c.linkPolicy
		req.Policy = &policy

		if _, err := c.executor.Do(ctx, req); err != nil {
			fail(variantID, err.Error())
			continue
		}
		c.logger.Info("Associated image to variant",
			zap.Int64("product_id", product.ID),
			zap.Int64("variant_id", variantID),
		)
	}
	return failures
}
