package valueobject

import (
	"errors"
	"strings"
)

// ErrEmptyProductReference is returned when a product reference is blank
var ErrEmptyProductReference = errors.New("product reference cannot be empty")

// ProductReference is the SKU shared by the storefront and the ERP. It is
// the only join key between the two catalogs.
type ProductReference struct {
	value string
}

// NewProductReference creates a ProductReference, trimming surrounding whitespace
func NewProductReference(value string) (ProductReference, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return ProductReference{}, ErrEmptyProductReference
	}
	return ProductReference{value: value}, nil
}

// MustProductReference creates a ProductReference and panics on an empty value.
// Intended for tests and constants.
func MustProductReference(value string) ProductReference {
	ref, err := NewProductReference(value)
	if err != nil {
		panic(err)
	}
	return ref
}

// String returns the raw SKU
func (r ProductReference) String() string {
	return r.value
}

// Equals returns true if both references hold the same SKU
func (r ProductReference) Equals(other ProductReference) bool {
	return r.value == other.value
}

// IsZero returns true for the zero value (never produced by NewProductReference)
func (r ProductReference) IsZero() bool {
	return r.value == ""
}

// MarshalText implements encoding.TextMarshaler so references can be map keys in JSON
func (r ProductReference) MarshalText() ([]byte, error) {
	return []byte(r.value), nil
}
