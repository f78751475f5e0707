package integration

import (
	"github.com/erp/catalogsync/internal/domain/shared/valueobject"
)

// CatalogItem is a product-kind item of the ERP catalog. It is a read model:
// writes go back through ERPCatalog, never through this struct.
type CatalogItem struct {
	ID             int64
	Reference      valueobject.ProductReference
	ReferencePrice valueobject.Price
	PurchaseAmount valueobject.Price
}

// IndexByReference keys items by SKU. When the ERP holds duplicates the last
// one listed wins.
func IndexByReference(items []CatalogItem) map[string]CatalogItem {
	index := make(map[string]CatalogItem, len(items))
	for _, item := range items {
		index[item.Reference.String()] = item
	}
	return index
}

// InventoryManagement tells whether the storefront tracks stock for a variant
type InventoryManagement string

const (
	InventoryTracked   InventoryManagement = "tracked"
	InventoryUntracked InventoryManagement = "untracked"
)

// IsTracked returns true when stock is tracked
func (m InventoryManagement) IsTracked() bool {
	return m == InventoryTracked
}

// StorefrontVariant is a sellable variant as held in the storefront cache.
// PriceKnown is false when the storefront price could not be read.
type StorefrontVariant struct {
	SKU                 valueobject.ProductReference
	VariantID           int64
	ProductID           int64
	InventoryItemID     int64
	Price               valueobject.Price
	PriceKnown          bool
	InventoryManagement InventoryManagement
}

// ProductSummary identifies an existing storefront product
type ProductSummary struct {
	ID     int64
	Handle string
	Title  string
}

// CreatedVariant is a variant returned by a product creation
type CreatedVariant struct {
	ID  int64
	SKU string
}

// ImageLinkFailure reports a variant image that could not be associated after
// the product itself was created.
type ImageLinkFailure struct {
	VariantSKU string
	VariantID  int64
	ImageSrc   string
	Reason     string
}

// CreatedProduct is the result of a storefront product creation
type CreatedProduct struct {
	ID           int64
	Handle       string
	Title        string
	Variants     []CreatedVariant
	ImagesCount  int
	LinkFailures []ImageLinkFailure
}

// VariantBySKU returns the created variant id for a SKU
func (p *CreatedProduct) VariantBySKU(sku string) (int64, bool) {
	for _, v := range p.Variants {
		if v.SKU != "" && v.SKU == sku {
			return v.ID, true
		}
	}
	return 0, false
}
