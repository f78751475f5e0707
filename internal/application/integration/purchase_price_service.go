package integration

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/shared/valueobject"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

// PurchasePriceService writes supplier ledger prices into ERP purchase amounts
type PurchasePriceService struct {
	erp    integration.ERPCatalog
	logger *zap.Logger
	now    func() time.Time
}

// NewPurchasePriceService creates a new PurchasePriceService
func NewPurchasePriceService(erp integration.ERPCatalog, log *zap.Logger) *PurchasePriceService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PurchasePriceService{erp: erp, logger: log, now: time.Now}
}

// Plan lists the ERP items and matches them against the ledger
func (s *PurchasePriceService) Plan(ctx context.Context, ledger []integration.LedgerEntry) (*PurchasePriceResult, error) {
	items, err := s.erp.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ERP items: %w", err)
	}

	log := logger.WithLogger(ctx, s.logger)
	result := &PurchasePriceResult{
		ItemsScanned: len(items),
		LedgerRows:   len(ledger),
		Updates:      integration.PlanPurchasePriceUpdates(items, ledger),
	}
	for _, entry := range ledger {
		if _, ok := valueobject.ParsePriceText(entry.RawPrice); !ok {
			result.UnparseableRows++
			log.Debug("Ledger price not readable",
				zap.Int("line", entry.Line),
				zap.String("reference", entry.Reference),
				zap.String("raw_price", entry.RawPrice),
			)
		}
	}
	log.Info("Purchase price plan ready",
		zap.Int("items", result.ItemsScanned),
		zap.Int("ledger_rows", result.LedgerRows),
		zap.Int("unparseable_rows", result.UnparseableRows),
		zap.Int("updates", len(result.Updates)),
	)
	return result, nil
}

// Run plans the updates and, unless opts.DryRun, applies them one by one.
// Item failures are collected; only a failed listing or a cancelled context
// aborts.
func (s *PurchasePriceService) Run(ctx context.Context, ledger []integration.LedgerEntry, opts RunOptions) (*PurchasePriceResult, error) {
	result, err := s.Plan(ctx, ledger)
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		return result, nil
	}

	log := logger.WithLogger(ctx, s.logger)
	result.Sync = &integration.SyncResult{}
	for _, update := range result.Updates {
		if err := ctx.Err(); err != nil {
			result.Sync.Finish(s.now())
			return result, err
		}
		if err := s.erp.UpdatePurchaseAmount(ctx, update.ItemID, update.New); err != nil {
			log.Error("Failed to update purchase amount",
				zap.String("reference", update.Reference.String()),
				zap.Int64("erp_item_id", update.ItemID),
				zap.Error(err),
			)
			result.Sync.RecordFailure(strconv.FormatInt(update.ItemID, 10), update.Reference.String(), err)
			continue
		}
		log.Info("Purchase amount updated",
			zap.String("reference", update.Reference.String()),
			zap.Int64("erp_item_id", update.ItemID),
			zap.String("from", update.Current.String()),
			zap.String("to", update.New.String()),
			zap.Int("ledger_line", update.Line),
		)
		result.Sync.RecordSuccess()
	}
	result.Sync.Finish(s.now())
	return result, nil
}
