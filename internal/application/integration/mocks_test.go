package integration

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/shared/valueobject"
)

// MockStorefrontCatalog is a mock implementation of integration.StorefrontCatalog
type MockStorefrontCatalog struct {
	mock.Mock
}

var _ integration.StorefrontCatalog = (*MockStorefrontCatalog)(nil)

func (m *MockStorefrontCatalog) FindProductByTitle(ctx context.Context, title string) (*integration.ProductSummary, error) {
	args := m.Called(ctx, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ProductSummary), args.Error(1)
}

func (m *MockStorefrontCatalog) Create(ctx context.Context, record *integration.NormalizedProductRecord) (*integration.CreatedProduct, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.CreatedProduct), args.Error(1)
}

func (m *MockStorefrontCatalog) Reload(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStorefrontCatalog) Lookup(ctx context.Context, sku string) (*integration.StorefrontVariant, bool, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*integration.StorefrontVariant), args.Bool(1), args.Error(2)
}

func (m *MockStorefrontCatalog) VariantPrices(ctx context.Context) (map[string]valueobject.Price, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]valueobject.Price), args.Error(1)
}

func (m *MockStorefrontCatalog) UpdatePrice(ctx context.Context, sku string, price valueobject.Price) error {
	return m.Called(ctx, sku, price).Error(0)
}

func (m *MockStorefrontCatalog) UpdateStock(ctx context.Context, sku string, quantity int) error {
	return m.Called(ctx, sku, quantity).Error(0)
}

func (m *MockStorefrontCatalog) MapReferences(ctx context.Context, skus []string) (map[string]integration.StorefrontVariant, error) {
	args := m.Called(ctx, skus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]integration.StorefrontVariant), args.Error(1)
}

// MockERPCatalog is a mock implementation of integration.ERPCatalog
type MockERPCatalog struct {
	mock.Mock
}

var _ integration.ERPCatalog = (*MockERPCatalog)(nil)

func (m *MockERPCatalog) ListItems(ctx context.Context) ([]integration.CatalogItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.CatalogItem), args.Error(1)
}

func (m *MockERPCatalog) UpdateReferencePrice(ctx context.Context, itemID int64, price valueobject.Price) error {
	return m.Called(ctx, itemID, price).Error(0)
}

func (m *MockERPCatalog) UpdatePurchaseAmount(ctx context.Context, itemID int64, price valueobject.Price) error {
	return m.Called(ctx, itemID, price).Error(0)
}

func price(s string) valueobject.Price {
	p, err := valueobject.NewPriceFromString(s)
	if err != nil {
		panic(err)
	}
	return p
}

func item(id int64, ref, reference, purchase string) integration.CatalogItem {
	return integration.CatalogItem{
		ID:             id,
		Reference:      valueobject.MustProductReference(ref),
		ReferencePrice: price(reference),
		PurchaseAmount: price(purchase),
	}
}

// priceArg matches a Price argument at cent precision
func priceArg(s string) any {
	want := price(s)
	return mock.MatchedBy(func(p valueobject.Price) bool { return p.Equals(want) })
}
