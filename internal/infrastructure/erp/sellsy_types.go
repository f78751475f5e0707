package erp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/shared/valueobject"
)

// itemTypeProduct is the only item kind taking part in reconciliation
const itemTypeProduct = "product"

// envelopeShape tells where a listing response keeps its item array
type envelopeShape int

const (
	envelopeUnrecognized envelopeShape = iota
	envelopeResponseItems
	envelopeItems
	envelopeData
)

// String returns the shape name used in logs
func (s envelopeShape) String() string {
	switch s {
	case envelopeResponseItems:
		return "response.items"
	case envelopeItems:
		return "items"
	case envelopeData:
		return "data"
	default:
		return "unrecognized"
	}
}

// itemsPage is one decoded listing page. Items holds every raw entry, before
// any filtering by type.
type itemsPage struct {
	Shape envelopeShape
	Items []sellsyItem
}

// rawEnvelope mirrors every known envelope; a nil pointer means the key was
// absent or null.
type rawEnvelope struct {
	Response *struct {
		Items *[]sellsyItem `json:"items"`
	} `json:"response"`
	Items *[]sellsyItem `json:"items"`
	Data  *[]sellsyItem `json:"data"`
}

// decodeItemsPage decodes a listing body into the first known shape, in the
// order response.items, items, data. Anything else is an unrecognized, empty
// page.
func decodeItemsPage(body []byte) (itemsPage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return itemsPage{Shape: envelopeUnrecognized}, nil
	}

	var env rawEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return itemsPage{}, fmt.Errorf("%w: sellsy items page: %v", integration.ErrInvalidResponse, err)
	}

	switch {
	case env.Response != nil && env.Response.Items != nil:
		return itemsPage{Shape: envelopeResponseItems, Items: *env.Response.Items}, nil
	case env.Items != nil:
		return itemsPage{Shape: envelopeItems, Items: *env.Items}, nil
	case env.Data != nil:
		return itemsPage{Shape: envelopeData, Items: *env.Data}, nil
	default:
		return itemsPage{Shape: envelopeUnrecognized}, nil
	}
}

// sellsyItem is a raw listing entry
type sellsyItem struct {
	ID             flexibleInt64   `json:"id"`
	Type           string          `json:"type"`
	Name           string          `json:"name"`
	Reference      string          `json:"reference"`
	ReferencePrice flexibleDecimal `json:"reference_price"`
	PurchaseAmount flexibleDecimal `json:"purchase_amount"`
}

// IsProduct reports whether the entry is a product-kind item
func (i sellsyItem) IsProduct() bool {
	return i.Type == itemTypeProduct
}

// toCatalogItem converts a product entry; entries without a reference fail
func (i sellsyItem) toCatalogItem() (integration.CatalogItem, error) {
	ref, err := valueobject.NewProductReference(i.Reference)
	if err != nil {
		return integration.CatalogItem{}, err
	}
	return integration.CatalogItem{
		ID:             int64(i.ID),
		Reference:      ref,
		ReferencePrice: valueobject.NewPrice(decimal.Decimal(i.ReferencePrice)),
		PurchaseAmount: valueobject.NewPrice(decimal.Decimal(i.PurchaseAmount)),
	}, nil
}

// flexibleDecimal accepts a JSON number, a numeric string or null. Any other
// value decodes to zero.
type flexibleDecimal decimal.Decimal

// UnmarshalJSON implements json.Unmarshaler
func (d *flexibleDecimal) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		*d = flexibleDecimal(decimal.Zero)
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		*d = flexibleDecimal(decimal.Zero)
		return nil
	}
	*d = flexibleDecimal(v)
	return nil
}

// flexibleInt64 accepts a JSON number or a numeric string
type flexibleInt64 int64

// UnmarshalJSON implements json.Unmarshaler
func (n *flexibleInt64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "null" || s == "" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid item id %q: %w", s, err)
	}
	*n = flexibleInt64(v)
	return nil
}

// itemUpdate is the body of an item mutation. Only the set field is sent.
type itemUpdate struct {
	ReferencePrice string `json:"reference_price,omitempty"`
	PurchaseAmount string `json:"purchase_amount,omitempty"`
}
