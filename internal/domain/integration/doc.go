// Package integration contains the catalog reconciliation bounded context.
// It joins a storefront catalog (sellable variants) and an ERP catalog
// (reference and purchase prices) on the SKU.
//
// Key concepts:
//   - StorefrontCatalog / ERPCatalog: port interfaces to the two platforms
//   - CatalogItem, StorefrontVariant: read models of each side
//   - Reconcile: pure price comparison producing PriceDifference values
//   - NormalizedProductRecord: scraped product input normalized into a ProductDraft
//   - ImportOutcome / ImportBatchResult / ImportRun: itemized import results
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
