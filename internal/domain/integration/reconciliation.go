package integration

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/erp/catalogsync/internal/domain/shared/valueobject"
)

// PriceDifference is a SKU whose storefront price differs from the ERP reference price
type PriceDifference struct {
	Reference       valueobject.ProductReference
	ERPItemID       int64
	StorefrontPrice valueobject.Price
	ERPPrice        valueobject.Price
	// Delta is StorefrontPrice - ERPPrice
	Delta decimal.Decimal
}

// ReconciliationReport is the outcome of comparing both catalogs
type ReconciliationReport struct {
	// Differences is sorted by reference
	Differences    []PriceDifference
	Matched        int
	StorefrontOnly []string
	ERPOnly        []string
}

// HasDifferences returns true when at least one price differs
func (r ReconciliationReport) HasDifferences() bool {
	return len(r.Differences) > 0
}

// Reconcile compares storefront prices with ERP reference prices at cent
// precision. SKUs present on one side only are listed, never compared.
func Reconcile(storefront map[string]valueobject.Price, erp map[string]CatalogItem) ReconciliationReport {
	report := ReconciliationReport{
		Differences:    []PriceDifference{},
		StorefrontOnly: []string{},
		ERPOnly:        []string{},
	}

	for _, sku := range sortedKeys(storefront) {
		sfPrice := storefront[sku]
		item, ok := erp[sku]
		if !ok {
			report.StorefrontOnly = append(report.StorefrontOnly, sku)
			continue
		}
		if sfPrice.Equals(item.ReferencePrice) {
			report.Matched++
			continue
		}
		report.Differences = append(report.Differences, PriceDifference{
			Reference:       item.Reference,
			ERPItemID:       item.ID,
			StorefrontPrice: sfPrice,
			ERPPrice:        item.ReferencePrice,
			Delta:           sfPrice.Sub(item.ReferencePrice),
		})
	}

	for _, sku := range sortedKeys(erp) {
		if _, ok := storefront[sku]; !ok {
			report.ERPOnly = append(report.ERPOnly, sku)
		}
	}

	return report
}

// ---------------------------------------------------------------------------
// Purchase prices
// ---------------------------------------------------------------------------

// LedgerEntry is a row of a supplier purchase ledger
type LedgerEntry struct {
	Reference string
	RawPrice  string
	Line      int
}

// PurchasePriceUpdate is a purchase amount to write back to the ERP
type PurchasePriceUpdate struct {
	ItemID    int64
	Reference valueobject.ProductReference
	Current   valueobject.Price
	New       valueobject.Price
	Line      int
}

// PlanPurchasePriceUpdates returns, for each ERP item in order, the first ledger
// row with the same reference whose parsed price differs from the current
// purchase amount. Rows whose price text does not parse are ignored.
func PlanPurchasePriceUpdates(items []CatalogItem, ledger []LedgerEntry) []PurchasePriceUpdate {
	byRef := make(map[string][]LedgerEntry, len(ledger))
	for _, entry := range ledger {
		byRef[entry.Reference] = append(byRef[entry.Reference], entry)
	}

	updates := []PurchasePriceUpdate{}
	for _, item := range items {
		for _, entry := range byRef[item.Reference.String()] {
			price, ok := valueobject.ParsePriceText(entry.RawPrice)
			if !ok || price.Equals(item.PurchaseAmount) {
				continue
			}
			updates = append(updates, PurchasePriceUpdate{
				ItemID:    item.ID,
				Reference: item.Reference,
				Current:   item.PurchaseAmount,
				New:       price,
				Line:      entry.Line,
			})
			break
		}
	}
	return updates
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
