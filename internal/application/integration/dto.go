package integration

import (
	"github.com/erp/catalogsync/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Reconciliation results
// ---------------------------------------------------------------------------

// RunOptions controls a write-back pass
type RunOptions struct {
	// DryRun computes the plan without writing to the ERP
	DryRun bool
}

// PriceReconciliationResult is the outcome of a storefront to ERP price pass
type PriceReconciliationResult struct {
	Report integration.ReconciliationReport
	// Sync is nil on a dry run
	Sync *integration.SyncResult
}

// PurchasePriceResult is the outcome of a ledger to ERP purchase price pass
type PurchasePriceResult struct {
	ItemsScanned int
	LedgerRows   int
	// UnparseableRows counts ledger rows whose price text could not be read
	UnparseableRows int
	Updates         []integration.PurchasePriceUpdate
	// Sync is nil on a dry run
	Sync *integration.SyncResult
}
