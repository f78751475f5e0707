package ecommerce

import (
	"strings"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/shared/valueobject"
)

// Shopify API wire values
const (
	shopifyInventoryManaged = "shopify"
	shopifyInventoryDeny    = "deny"
	shopifyStatusDraft      = "draft"
	metafieldNamespace      = "custom"
	metafieldType           = "single_line_text_field"
)

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

// shopifyProductsResponse is the body of GET products.json
type shopifyProductsResponse struct {
	Products []shopifyProduct `json:"products"`
}

// shopifyProductResponse wraps a single product
type shopifyProductResponse struct {
	Product shopifyProduct `json:"product"`
}

// shopifyProduct represents a Shopify product
type shopifyProduct struct {
	ID       int64            `json:"id"`
	Title    string           `json:"title"`
	Handle   string           `json:"handle"`
	Variants []shopifyVariant `json:"variants"`
	Images   []shopifyImage   `json:"images"`
}

// shopifyVariant represents a Shopify product variant
type shopifyVariant struct {
	ID                  int64   `json:"id"`
	ProductID           int64   `json:"product_id"`
	SKU                 string  `json:"sku"`
	Price               string  `json:"price"`
	InventoryItemID     int64   `json:"inventory_item_id"`
	InventoryManagement *string `json:"inventory_management"`
}

// shopifyVariantResponse wraps a single variant
type shopifyVariantResponse struct {
	Variant shopifyVariant `json:"variant"`
}

// shopifyImage represents a product image
type shopifyImage struct {
	ID         int64   `json:"id,omitempty"`
	Src        string  `json:"src,omitempty"`
	VariantIDs []int64 `json:"variant_ids,omitempty"`
}

// shopifyLocationsResponse is the body of GET locations.json
type shopifyLocationsResponse struct {
	Locations []struct {
		ID int64 `json:"id"`
	} `json:"locations"`
}

// tracked reports whether Shopify manages the variant's stock
func (v shopifyVariant) tracked() bool {
	return v.InventoryManagement != nil && *v.InventoryManagement == shopifyInventoryManaged
}

// toStorefrontVariant converts a listed variant; variants without SKU fail.
// A price Shopify sends in an unexpected format leaves PriceKnown false.
func (v shopifyVariant) toStorefrontVariant(productID int64) (integration.StorefrontVariant, bool) {
	sku, err := valueobject.NewProductReference(v.SKU)
	if err != nil {
		return integration.StorefrontVariant{}, false
	}
	price, err := valueobject.NewPriceFromString(strings.TrimSpace(v.Price))
	priceKnown := err == nil
	if !priceKnown {
		price = valueobject.ZeroPrice()
	}
	if v.ProductID != 0 {
		productID = v.ProductID
	}
	management := integration.InventoryUntracked
	if v.tracked() {
		management = integration.InventoryTracked
	}
	return integration.StorefrontVariant{
		SKU:                 sku,
		VariantID:           v.ID,
		ProductID:           productID,
		InventoryItemID:     v.InventoryItemID,
		Price:               price,
		PriceKnown:          priceKnown,
		InventoryManagement: management,
	}, true
}

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

// variantUpdateRequest is the body of PUT variants/{id}.json
type variantUpdateRequest struct {
	Variant variantUpdate `json:"variant"`
}

type variantUpdate struct {
	ID                  int64  `json:"id"`
	Price               string `json:"price,omitempty"`
	InventoryManagement string `json:"inventory_management,omitempty"`
}

// inventorySetRequest is the body of POST inventory_levels/set.json
type inventorySetRequest struct {
	LocationID      int64 `json:"location_id"`
	InventoryItemID int64 `json:"inventory_item_id"`
	Available       int   `json:"available"`
}

// productCreateRequest is the body of POST products.json
type productCreateRequest struct {
	Product productPayload `json:"product"`
}

type productPayload struct {
	Title       string             `json:"title"`
	BodyHTML    string             `json:"body_html"`
	Vendor      string             `json:"vendor"`
	ProductType string             `json:"product_type"`
	Tags        string             `json:"tags"`
	Variants    []variantPayload   `json:"variants"`
	Images      []imagePayload     `json:"images"`
	Status      string             `json:"status"`
	Metafields  []metafieldPayload `json:"metafields,omitempty"`
}

type variantPayload struct {
	Option1             string  `json:"option1"`
	Price               string  `json:"price"`
	SKU                 string  `json:"sku,omitempty"`
	InventoryManagement string  `json:"inventory_management"`
	InventoryPolicy     string  `json:"inventory_policy"`
	CompareAtPrice      *string `json:"compare_at_price,omitempty"`
}

type imagePayload struct {
	Src string `json:"src"`
}

type metafieldPayload struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type"`
}

// imageRequest is the body of the image link calls
type imageRequest struct {
	Image shopifyImage `json:"image"`
}

// buildProductPayload converts a normalized draft into the creation body
func buildProductPayload(draft integration.ProductDraft) productCreateRequest {
	p := productPayload{
		Title:       draft.Title,
		BodyHTML:    draft.BodyHTML,
		Vendor:      draft.Vendor,
		ProductType: draft.ProductType,
		Tags:        strings.Join(draft.Tags, ", "),
		Variants:    make([]variantPayload, 0, len(draft.Variants)),
		Images:      make([]imagePayload, 0, len(draft.Images)),
		Status:      shopifyStatusDraft,
	}

	for _, v := range draft.Variants {
		vp := variantPayload{
			Option1:             v.Option,
			Price:               v.Price.String(),
			SKU:                 v.SKU,
			InventoryManagement: shopifyInventoryManaged,
			InventoryPolicy:     shopifyInventoryDeny,
		}
		if v.CompareAtPrice != nil {
			s := v.CompareAtPrice.String()
			vp.CompareAtPrice = &s
		}
		p.Variants = append(p.Variants, vp)
	}
	for _, src := range draft.Images {
		p.Images = append(p.Images, imagePayload{Src: src})
	}
	for _, m := range draft.Metafields {
		p.Metafields = append(p.Metafields, metafieldPayload{
			Namespace: metafieldNamespace,
			Key:       m.Key,
			Value:     m.Value,
			Type:      metafieldType,
		})
	}

	return productCreateRequest{Product: p}
}

// matchImage finds a created image by source. Shopify rewrites sources to its
// CDN, so either string containing the other counts as a match.
func matchImage(images []shopifyImage, src string) (shopifyImage, bool) {
	for _, img := range images {
		if img.Src == "" {
			continue
		}
		if strings.Contains(img.Src, src) || strings.Contains(src, img.Src) {
			return img, true
		}
	}
	return shopifyImage{}, false
}
