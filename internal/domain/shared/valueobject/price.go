package valueobject

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// PriceScale is the number of fractional digits prices are compared and
// written with.
const PriceScale int32 = 2

// Price is a value object representing a single-currency sale or purchase price.
// It is immutable - all operations return new values.
type Price struct {
	amount decimal.Decimal
}

// NewPrice creates a Price from a decimal amount
func NewPrice(amount decimal.Decimal) Price {
	return Price{amount: amount}
}

// NewPriceFromFloat creates a Price from a float64 value
func NewPriceFromFloat(amount float64) Price {
	return Price{amount: decimal.NewFromFloat(amount)}
}

// NewPriceFromString creates a Price from a canonical decimal string ("12.50").
// Use ParsePriceText for free-form user or spreadsheet input.
func NewPriceFromString(amount string) (Price, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Price{}, fmt.Errorf("invalid price %q: %w", amount, err)
	}
	return Price{amount: d}, nil
}

// ZeroPrice returns a zero price
func ZeroPrice() Price {
	return Price{amount: decimal.Zero}
}

// Amount returns the decimal amount
func (p Price) Amount() decimal.Decimal {
	return p.amount
}

// Rounded returns the amount rounded to PriceScale digits.
func (p Price) Rounded() decimal.Decimal {
	return p.amount.Round(PriceScale)
}

// Equals compares two prices at cent precision, so 10, 10.0 and 10.001 are equal.
func (p Price) Equals(other Price) bool {
	return p.Rounded().Equal(other.Rounded())
}

// Sub returns p - other at cent precision
func (p Price) Sub(other Price) decimal.Decimal {
	return p.Rounded().Sub(other.Rounded())
}

// GreaterThan returns true if p is strictly greater than other at cent precision
func (p Price) GreaterThan(other Price) bool {
	return p.Rounded().GreaterThan(other.Rounded())
}

// IsNegative returns true if the amount is below zero
func (p Price) IsNegative() bool {
	return p.amount.IsNegative()
}

// IsZero returns true if the amount is zero
func (p Price) IsZero() bool {
	return p.amount.IsZero()
}

// String returns the wire representation with two fractional digits ("1535.00")
func (p Price) String() string {
	return p.amount.StringFixed(PriceScale)
}

// MarshalJSON encodes the price as a decimal string
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts both JSON numbers and decimal strings, the two shapes
// the storefront and ERP platforms use for prices.
func (p *Price) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		p.amount = decimal.Zero
		return nil
	}
	raw = strings.Trim(raw, `"`)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid price %s: %w", string(data), err)
	}
	p.amount = d
	return nil
}

// ParsePriceText extracts a price from free-form text such as "1 535,00€",
// "29.99" or "1.234,56". It returns false when nothing numeric remains.
//
// Rules: the text is NFKC-normalized (non-breaking and narrow spaces become
// plain spaces, full-width digits become ASCII), everything except digits,
// comma, dot and minus is removed, then separators are disambiguated: when
// both a comma and a dot are present the last one is the decimal point and
// the other is a thousands separator; a lone comma is the decimal point.
func ParsePriceText(raw string) (Price, bool) {
	s := strings.TrimSpace(norm.NFKC.String(raw))

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	s = b.String()
	if s == "" {
		return Price{}, false
	}

	d, err := decimal.NewFromString(normalizeSeparators(s))
	if err != nil {
		return Price{}, false
	}
	return Price{amount: d}, true
}

// normalizeSeparators rewrites s so that "." is the only separator left and
// it marks the decimal point.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.ReplaceAll(s, ",", ".")
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		return strings.ReplaceAll(s, ",", ".")
	default:
		return s
	}
}
