package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/shared/valueobject"
)

func TestStockService_SetQuantity(t *testing.T) {
	t.Run("trims the SKU and forwards", func(t *testing.T) {
		storefront := new(MockStorefrontCatalog)
		storefront.On("UpdateStock", mock.Anything, "CH-1", 12).Return(nil).Once()

		err := NewStockService(storefront, nil).SetQuantity(context.Background(), "  CH-1 ", 12)
		require.NoError(t, err)
		storefront.AssertExpectations(t)
	})

	t.Run("empty SKU", func(t *testing.T) {
		storefront := new(MockStorefrontCatalog)

		err := NewStockService(storefront, nil).SetQuantity(context.Background(), " ", 1)
		assert.ErrorIs(t, err, valueobject.ErrEmptyProductReference)
		storefront.AssertNotCalled(t, "UpdateStock", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("storefront error is wrapped", func(t *testing.T) {
		storefront := new(MockStorefrontCatalog)
		storefront.On("UpdateStock", mock.Anything, "CH-1", 3).Return(integration.ErrDependencyUnavailable)

		err := NewStockService(storefront, nil).SetQuantity(context.Background(), "CH-1", 3)
		assert.ErrorIs(t, err, integration.ErrDependencyUnavailable)
		assert.Contains(t, err.Error(), "CH-1")
	})
}

func TestStockService_Track(t *testing.T) {
	storefront := new(MockStorefrontCatalog)
	skus := []string{"CH-1", "GHOST"}
	storefront.On("MapReferences", mock.Anything, skus).Return(map[string]integration.StorefrontVariant{
		"CH-1": {
			SKU:                 valueobject.MustProductReference("CH-1"),
			VariantID:           7,
			InventoryManagement: integration.InventoryTracked,
		},
	}, nil)

	mapped, missing, err := NewStockService(storefront, nil).Track(context.Background(), skus)
	require.NoError(t, err)
	assert.Len(t, mapped, 1)
	assert.True(t, mapped["CH-1"].InventoryManagement.IsTracked())
	assert.Equal(t, []string{"GHOST"}, missing)
}
