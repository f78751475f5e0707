package integration

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/shared/valueobject"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

// StockService drives storefront stock levels and inventory tracking
type StockService struct {
	storefront integration.StorefrontCatalog
	logger     *zap.Logger
}

// NewStockService creates a new StockService
func NewStockService(storefront integration.StorefrontCatalog, log *zap.Logger) *StockService {
	if log == nil {
		log = zap.NewNop()
	}
	return &StockService{storefront: storefront, logger: log}
}

// SetQuantity sets the available quantity of one SKU. Unknown SKUs are a
// logged no-op in the storefront client.
func (s *StockService) SetQuantity(ctx context.Context, sku string, quantity int) error {
	ref, err := valueobject.NewProductReference(sku)
	if err != nil {
		return err
	}
	if err := s.storefront.UpdateStock(ctx, ref.String(), quantity); err != nil {
		return fmt.Errorf("failed to set stock of %s: %w", ref, err)
	}
	logger.WithLogger(ctx, s.logger).Info("Stock level set",
		zap.String("sku", ref.String()),
		zap.Int("quantity", quantity),
	)
	return nil
}

// Track returns the storefront variants of the given SKUs with inventory
// tracking enabled. SKUs the storefront does not know are listed in missing.
func (s *StockService) Track(ctx context.Context, skus []string) (map[string]integration.StorefrontVariant, []string, error) {
	mapped, err := s.storefront.MapReferences(ctx, skus)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to map references: %w", err)
	}
	missing := []string{}
	for _, sku := range skus {
		if _, ok := mapped[sku]; !ok {
			missing = append(missing, sku)
		}
	}
	logger.WithLogger(ctx, s.logger).Info("References mapped",
		zap.Int("requested", len(skus)),
		zap.Int("mapped", len(mapped)),
		zap.Int("missing", len(missing)),
	)
	return mapped, missing, nil
}
