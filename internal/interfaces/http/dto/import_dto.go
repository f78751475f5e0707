package dto

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/domain/shared/valueobject"
)

// ImportProductsRequest is the body of POST /storefront/import, as sent by the scraper
type ImportProductsRequest struct {
	Products []ProductPayload `json:"products" binding:"required"`
}

// ProductPayload is one scraped product. Prices accept JSON numbers or strings.
type ProductPayload struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Images      []string          `json:"images"`
	Price       *decimal.Decimal  `json:"price"`
	OldPrice    *decimal.Decimal  `json:"oldPrice"`
	Variants    []VariantPayload  `json:"variants"`
	Supplier    string            `json:"supplier"`
	SourceURL   string            `json:"sourceUrl"`
	Discount    int               `json:"discount"`
	Metadata    map[string]string `json:"metadata"`
}

// VariantPayload is a scraped variant, either a bare option name or an object
type VariantPayload struct {
	Name     string           `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	SKU      string           `json:"sku"`
	OldPrice *decimal.Decimal `json:"oldPrice"`
	Image    string           `json:"image"`
}

// UnmarshalJSON accepts "M" as well as {"name":"M",...}
func (v *VariantPayload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*v = VariantPayload{Name: name}
		return nil
	}
	type plain VariantPayload
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*v = VariantPayload(p)
	return nil
}

// ToRecord converts the payload into a domain record. A missing price is
// reported as an error; every other rule is checked by the importer.
func (p ProductPayload) ToRecord() (*integration.NormalizedProductRecord, error) {
	record := &integration.NormalizedProductRecord{
		Title:       strings.TrimSpace(p.Title),
		Description: p.Description,
		Images:      p.Images,
		OldPrice:    priceOrNil(p.OldPrice),
		Supplier:    p.Supplier,
		SourceURL:   p.SourceURL,
		Discount:    p.Discount,
		Metadata:    p.Metadata,
	}
	for _, v := range p.Variants {
		record.Variants = append(record.Variants, integration.VariantInput{
			Name:     v.Name,
			Price:    priceOrNil(v.Price),
			SKU:      v.SKU,
			OldPrice: priceOrNil(v.OldPrice),
			Image:    v.Image,
		})
	}
	if p.Price == nil {
		return record, shared.NewDomainError("INVALID_INPUT", "product price is required")
	}
	record.Price = valueobject.NewPrice(*p.Price)
	return record, nil
}

func priceOrNil(d *decimal.Decimal) *valueobject.Price {
	if d == nil {
		return nil
	}
	p := valueobject.NewPrice(*d)
	return &p
}

// ImportProductsResponse mirrors the summary the scraper front end displays
type ImportProductsResponse struct {
	Success  bool                           `json:"success"`
	RunID    string                         `json:"run_id,omitempty"`
	Imported int                            `json:"imported"`
	Skipped  int                            `json:"skipped"`
	Errors   int                            `json:"errors"`
	Details  *integration.ImportBatchResult `json:"details"`
	Message  string                         `json:"message"`
}

// NewImportProductsResponse builds the response of a finished batch
func NewImportProductsResponse(result *integration.ImportBatchResult, runID string) ImportProductsResponse {
	return ImportProductsResponse{
		Success:  len(result.Created) > 0,
		RunID:    runID,
		Imported: len(result.Created),
		Skipped:  len(result.Skipped),
		Errors:   len(result.Failed),
		Details:  result,
		Message:  result.Summary(),
	}
}

// ImportRunResponse is one entry of the import history
type ImportRunResponse struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Total       int        `json:"total"`
	Created     int        `json:"created"`
	Skipped     int        `json:"skipped"`
	Failed      int        `json:"failed"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewImportRunResponses converts domain runs
func NewImportRunResponses(runs []*integration.ImportRun) []ImportRunResponse {
	out := make([]ImportRunResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, ImportRunResponse{
			ID:          r.ID.String(),
			Source:      r.Source,
			Total:       r.TotalCount,
			Created:     r.CreatedCount,
			Skipped:     r.SkippedCount,
			Failed:      r.FailedCount,
			StartedAt:   r.StartedAt,
			CompletedAt: r.CompletedAt,
		})
	}
	return out
}

// HealthResponse is the body of the health endpoint
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}
