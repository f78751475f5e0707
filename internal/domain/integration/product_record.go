package integration

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/domain/shared/valueobject"
)

const (
	// DefaultVariantOption is the option label of a product without variants
	DefaultVariantOption = "Default"
	// UnknownSupplier is used as vendor when the record carries no supplier
	UnknownSupplier = "Unknown"
	// PromoTag is added to products sold below their old price
	PromoTag = "Promo"

	metadataSKU      = "sku"
	metadataPlatform = "platform"
)

// VariantInput is a variant of a scraped product
type VariantInput struct {
	Name     string
	Price    *valueobject.Price
	SKU      string
	OldPrice *valueobject.Price
	Image    string
}

// NormalizedProductRecord is a scraped product handed to the importer
type NormalizedProductRecord struct {
	Title       string
	Description string
	Images      []string
	Price       valueobject.Price
	OldPrice    *valueobject.Price
	Variants    []VariantInput
	Supplier    string
	SourceURL   string
	// Discount is a percentage; zero means derive it from OldPrice
	Discount int
	Metadata map[string]string
}

// Validate checks the invariants a record must hold before creation
func (r *NormalizedProductRecord) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return shared.NewDomainError("INVALID_INPUT", "product title is required")
	}
	if r.Price.IsNegative() {
		return shared.NewDomainError("INVALID_INPUT", "product price cannot be negative")
	}
	if r.Discount < 0 || r.Discount > 100 {
		return shared.NewDomainError("INVALID_INPUT", "discount must be between 0 and 100")
	}
	for i, v := range r.Variants {
		if v.Price != nil && v.Price.IsNegative() {
			return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("variant %d price cannot be negative", i))
		}
		if v.Image != "" && !isHTTPURL(v.Image) {
			return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("variant %d image must be an absolute http(s) URL", i))
		}
	}
	for _, img := range nonEmpty(r.Images) {
		if !isHTTPURL(img) {
			return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("image %q must be an absolute http(s) URL", img))
		}
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// EffectiveOldPrice returns the old price only when it is above the sale price
func (r *NormalizedProductRecord) EffectiveOldPrice() *valueobject.Price {
	if r.OldPrice == nil || !r.OldPrice.GreaterThan(r.Price) {
		return nil
	}
	old := *r.OldPrice
	return &old
}

// DiscountPercent returns the explicit discount, or the one implied by the old price
func (r *NormalizedProductRecord) DiscountPercent() int {
	if r.Discount > 0 {
		return r.Discount
	}
	old := r.EffectiveOldPrice()
	if old == nil || old.IsZero() {
		return 0
	}
	pct := old.Amount().Sub(r.Price.Amount()).Div(old.Amount()).Mul(decimal.NewFromInt(100)).Round(0)
	return int(pct.IntPart())
}

// Vendor returns the supplier, or UnknownSupplier when blank
func (r *NormalizedProductRecord) Vendor() string {
	if s := strings.TrimSpace(r.Supplier); s != "" {
		return s
	}
	return UnknownSupplier
}

// ProductType returns the platform metadata, falling back to the vendor
func (r *NormalizedProductRecord) ProductType() string {
	if p := strings.TrimSpace(r.Metadata[metadataPlatform]); p != "" {
		return p
	}
	return r.Vendor()
}

// Tags returns the storefront tags in display order
func (r *NormalizedProductRecord) Tags() []string {
	tags := []string{r.Vendor()}
	if d := r.DiscountPercent(); d > 0 {
		tags = append(tags, PromoTag, fmt.Sprintf("-%d%%", d))
	}
	if n := len(r.Variants); n > 0 {
		tags = append(tags, fmt.Sprintf("%d variants", n))
	}
	return tags
}

// ---------------------------------------------------------------------------
// Product draft
// ---------------------------------------------------------------------------

// DraftVariant is a variant ready to be sent to the storefront
type DraftVariant struct {
	Option         string
	Price          valueobject.Price
	SKU            string
	CompareAtPrice *valueobject.Price
	Image          string
}

// Metafield is a key/value attribute attached to the product
type Metafield struct {
	Key   string
	Value string
}

// ProductDraft is the normalized creation payload of a record
type ProductDraft struct {
	Title       string
	BodyHTML    string
	Vendor      string
	ProductType string
	Tags        []string
	Variants    []DraftVariant
	Images      []string
	Metafields  []Metafield
}

// Normalize builds the creation payload of the record
func (r *NormalizedProductRecord) Normalize() ProductDraft {
	oldPrice := r.EffectiveOldPrice()

	draft := ProductDraft{
		Title:       strings.TrimSpace(r.Title),
		BodyHTML:    r.Description,
		Vendor:      r.Vendor(),
		ProductType: r.ProductType(),
		Tags:        r.Tags(),
		Images:      nonEmpty(r.Images),
	}

	if len(r.Variants) == 0 {
		draft.Variants = []DraftVariant{{
			Option:         DefaultVariantOption,
			Price:          r.Price,
			SKU:            r.Metadata[metadataSKU],
			CompareAtPrice: oldPrice,
		}}
	} else {
		for _, v := range r.Variants {
			dv := DraftVariant{
				Option:         v.Name,
				Price:          r.Price,
				SKU:            v.SKU,
				CompareAtPrice: oldPrice,
				Image:          v.Image,
			}
			if strings.TrimSpace(dv.Option) == "" {
				dv.Option = DefaultVariantOption
			}
			if v.Price != nil {
				dv.Price = *v.Price
			}
			if v.OldPrice != nil {
				old := *v.OldPrice
				dv.CompareAtPrice = &old
			}
			draft.Variants = append(draft.Variants, dv)
		}
	}

	keys := make([]string, 0, len(r.Metadata))
	for k, v := range r.Metadata {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		draft.Metafields = append(draft.Metafields, Metafield{Key: k, Value: r.Metadata[k]})
	}

	return draft
}

// VariantImages returns the variants that carry an image
func (d ProductDraft) VariantImages() []DraftVariant {
	var out []DraftVariant
	for _, v := range d.Variants {
		if v.Image != "" {
			out = append(out, v)
		}
	}
	return out
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
