// Package integration holds the write-back services that reconcile the
// storefront and ERP catalogs.
package integration

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

// PriceReconciliationService compares storefront prices with ERP reference
// prices and writes the storefront price back to the ERP
type PriceReconciliationService struct {
	storefront integration.StorefrontCatalog
	erp        integration.ERPCatalog
	logger     *zap.Logger
	now        func() time.Time
}

// NewPriceReconciliationService creates a new PriceReconciliationService
func NewPriceReconciliationService(
	storefront integration.StorefrontCatalog,
	erp integration.ERPCatalog,
	log *zap.Logger,
) *PriceReconciliationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PriceReconciliationService{
		storefront: storefront,
		erp:        erp,
		logger:     log,
		now:        time.Now,
	}
}

// Compare loads both catalogs and diffs them. Nothing is written.
func (s *PriceReconciliationService) Compare(ctx context.Context) (integration.ReconciliationReport, error) {
	log := logger.WithLogger(ctx, s.logger)

	prices, err := s.storefront.VariantPrices(ctx)
	if err != nil {
		return integration.ReconciliationReport{}, fmt.Errorf("failed to load storefront variants: %w", err)
	}
	log.Info("Storefront variants loaded", zap.Int("count", len(prices)))

	items, err := s.erp.ListItems(ctx)
	if err != nil {
		return integration.ReconciliationReport{}, fmt.Errorf("failed to list ERP items: %w", err)
	}
	log.Info("ERP items loaded", zap.Int("count", len(items)))

	report := integration.Reconcile(prices, integration.IndexByReference(items))
	for _, sku := range report.StorefrontOnly {
		log.Warn("SKU exists in the storefront but not in the ERP", zap.String("sku", sku))
	}
	for _, sku := range report.ERPOnly {
		log.Warn("Reference exists in the ERP but not in the storefront", zap.String("reference", sku))
	}
	log.Info("Price comparison done",
		zap.Int("matched", report.Matched),
		zap.Int("differences", len(report.Differences)),
	)
	return report, nil
}

// Run compares both catalogs and, unless opts.DryRun, sets each differing
// ERP reference price to the storefront price. Item failures are collected
// in the result; only a failed comparison or a cancelled context aborts.
func (s *PriceReconciliationService) Run(ctx context.Context, opts RunOptions) (*PriceReconciliationResult, error) {
	report, err := s.Compare(ctx)
	if err != nil {
		return nil, err
	}
	result := &PriceReconciliationResult{Report: report}
	if opts.DryRun {
		return result, nil
	}

	log := logger.WithLogger(ctx, s.logger)
	result.Sync = &integration.SyncResult{}
	for _, diff := range report.Differences {
		if err := ctx.Err(); err != nil {
			result.Sync.Finish(s.now())
			return result, err
		}
		err := s.erp.UpdateReferencePrice(ctx, diff.ERPItemID, diff.StorefrontPrice)
		if err != nil {
			log.Error("Failed to update reference price",
				zap.String("reference", diff.Reference.String()),
				zap.Int64("erp_item_id", diff.ERPItemID),
				zap.Error(err),
			)
			result.Sync.RecordFailure(strconv.FormatInt(diff.ERPItemID, 10), diff.Reference.String(), err)
			continue
		}
		log.Info("Reference price updated",
			zap.String("reference", diff.Reference.String()),
			zap.String("from", diff.ERPPrice.String()),
			zap.String("to", diff.StorefrontPrice.String()),
		)
		result.Sync.RecordSuccess()
	}
	result.Sync.Finish(s.now())
	return result, nil
}
