package integration

import (
	"context"
	"errors"
	"time"

	"github.com/erp/catalogsync/internal/domain/shared/valueobject"
)

// ---------------------------------------------------------------------------
// Platform Errors
// ---------------------------------------------------------------------------

var (
	// ErrRateLimited is returned once a call kept answering "too many requests"
	// for every allowed attempt.
	ErrRateLimited = errors.New("integration: platform rate limited")
	// ErrValidationRejected is returned when the platform refuses a payload (HTTP 422).
	// It is never retried.
	ErrValidationRejected = errors.New("integration: payload rejected by platform")
	// ErrResourceNotFound marks an unknown SKU or platform object.
	ErrResourceNotFound = errors.New("integration: resource not found")
	// ErrDependencyUnavailable marks a missing prerequisite such as a credential,
	// a warehouse location or a reachable endpoint.
	ErrDependencyUnavailable = errors.New("integration: dependency unavailable")
	// ErrUnclassified is any other non-success platform response.
	ErrUnclassified = errors.New("integration: platform request failed")
	// ErrInvalidResponse is returned when a success response cannot be decoded.
	ErrInvalidResponse = errors.New("integration: invalid platform response")
	// ErrPlatformNotConfigured is returned by adapters missing mandatory settings.
	ErrPlatformNotConfigured = errors.New("integration: platform not configured")
)

// FailureKind is the classification of a failed platform interaction, used
// for itemized batch reports.
type FailureKind string

const (
	FailureRateLimited           FailureKind = "RATE_LIMITED"
	FailureValidationRejected    FailureKind = "VALIDATION_REJECTED"
	FailureResourceNotFound      FailureKind = "RESOURCE_NOT_FOUND"
	FailureDependencyUnavailable FailureKind = "DEPENDENCY_UNAVAILABLE"
	FailureUnclassified          FailureKind = "UNCLASSIFIED"
)

// ClassifyFailure maps an error returned by a platform adapter to its FailureKind.
func ClassifyFailure(err error) FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return FailureRateLimited
	case errors.Is(err, ErrValidationRejected):
		return FailureValidationRejected
	case errors.Is(err, ErrResourceNotFound):
		return FailureResourceNotFound
	case errors.Is(err, ErrDependencyUnavailable), errors.Is(err, ErrPlatformNotConfigured):
		return FailureDependencyUnavailable
	default:
		return FailureUnclassified
	}
}

// ---------------------------------------------------------------------------
// PlatformCode represents an external platform
// ---------------------------------------------------------------------------

// PlatformCode represents an external platform taking part in reconciliation
type PlatformCode string

const (
	// PlatformCodeShopify is the storefront platform
	PlatformCodeShopify PlatformCode = "SHOPIFY"
	// PlatformCodeSellsy is the ERP platform
	PlatformCodeSellsy PlatformCode = "SELLSY"
)

// IsValid returns true if the platform code is known
func (c PlatformCode) IsValid() bool {
	switch c {
	case PlatformCodeShopify, PlatformCodeSellsy:
		return true
	default:
		return false
	}
}

// String returns the string representation of PlatformCode
func (c PlatformCode) String() string {
	return string(c)
}

// DisplayName returns a human-readable name for the platform
func (c PlatformCode) DisplayName() string {
	switch c {
	case PlatformCodeShopify:
		return "Shopify"
	case PlatformCodeSellsy:
		return "Sellsy"
	default:
		return string(c)
	}
}

// ---------------------------------------------------------------------------
// Sync results
// ---------------------------------------------------------------------------

// SyncStatus represents the overall status of a write-back pass
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusPartial SyncStatus = "PARTIAL"
	SyncStatusFailed  SyncStatus = "FAILED"
	SyncStatusNoop    SyncStatus = "NOOP"
)

// IsValid returns true if the sync status is valid
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusSuccess, SyncStatusPartial, SyncStatusFailed, SyncStatusNoop:
		return true
	default:
		return false
	}
}

// SyncResult represents the result of a write-back pass over many items
type SyncResult struct {
	// Status is the overall sync status
	Status SyncStatus
	// TotalCount is the number of items a write was attempted for
	TotalCount int
	// SuccessCount is the number of successfully written items
	SuccessCount int
	// FailedCount is the number of failed items
	FailedCount int
	// FailedItems contains details about failed items
	FailedItems []SyncFailure
	// SyncedAt is when the pass completed
	SyncedAt time.Time
}

// SyncFailure represents a failed item
type SyncFailure struct {
	// ItemID is the identifier of the failed item (ERP id or SKU)
	ItemID string
	// Reference is the SKU of the failed item
	Reference string
	// Kind classifies the failure
	Kind FailureKind
	// ErrorMessage is the error description
	ErrorMessage string
}

// RecordSuccess counts a successful item
func (r *SyncResult) RecordSuccess() {
	r.TotalCount++
	r.SuccessCount++
}

// RecordFailure counts a failed item
func (r *SyncResult) RecordFailure(itemID, reference string, err error) {
	r.TotalCount++
	r.FailedCount++
	r.FailedItems = append(r.FailedItems, SyncFailure{
		ItemID:       itemID,
		Reference:    reference,
		Kind:         ClassifyFailure(err),
		ErrorMessage: err.Error(),
	})
}

// Finish derives the overall status and stamps the completion time
func (r *SyncResult) Finish(at time.Time) {
	switch {
	case r.TotalCount == 0:
		r.Status = SyncStatusNoop
	case r.FailedCount == 0:
		r.Status = SyncStatusSuccess
	case r.SuccessCount == 0:
		r.Status = SyncStatusFailed
	default:
		r.Status = SyncStatusPartial
	}
	r.SyncedAt = at
}

// ---------------------------------------------------------------------------
// Port Interfaces
// ---------------------------------------------------------------------------

// ProductCreator is the part of the storefront used by the product importer
type ProductCreator interface {
	// FindProductByTitle returns the first product whose title matches exactly, or nil
	FindProductByTitle(ctx context.Context, title string) (*ProductSummary, error)
	// Create creates the product as a draft and returns what the platform created
	Create(ctx context.Context, record *NormalizedProductRecord) (*CreatedProduct, error)
}

// StorefrontCatalog is the port to the storefront platform. Implementations
// own the SKU to variant cache.
type StorefrontCatalog interface {
	ProductCreator

	// Reload rebuilds the variant cache from the platform listing
	Reload(ctx context.Context) error
	// Lookup serves a variant from the cache, loading it on first use only
	Lookup(ctx context.Context, sku string) (*StorefrontVariant, bool, error)
	// VariantPrices returns a SKU to price snapshot of the cache
	VariantPrices(ctx context.Context) (map[string]valueobject.Price, error)
	// UpdatePrice sets the sale price of a SKU; unknown SKUs are a no-op
	UpdatePrice(ctx context.Context, sku string, price valueobject.Price) error
	// UpdateStock sets the available quantity of a SKU; unknown SKUs are a no-op
	UpdateStock(ctx context.Context, sku string, quantity int) error
	// MapReferences returns the cached variants for the given SKUs, enabling
	// inventory tracking where it is off
	MapReferences(ctx context.Context, skus []string) (map[string]StorefrontVariant, error)
}

// ERPCatalog is the port to the ERP platform
type ERPCatalog interface {
	// ListItems returns every product-kind item in discovery order
	ListItems(ctx context.Context) ([]CatalogItem, error)
	// UpdateReferencePrice writes the sale reference price of an item
	UpdateReferencePrice(ctx context.Context, itemID int64, price valueobject.Price) error
	// UpdatePurchaseAmount writes the purchase price of an item
	UpdatePurchaseAmount(ctx context.Context, itemID int64, price valueobject.Price) error
}
