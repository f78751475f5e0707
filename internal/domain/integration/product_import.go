package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erp/catalogsync/internal/domain/shared"
)

// ImportStatus is the outcome kind of a single product import
type ImportStatus string

const (
	ImportStatusCreated ImportStatus = "created"
	ImportStatusSkipped ImportStatus = "skipped"
	ImportStatusFailed  ImportStatus = "failed"
)

// IsValid checks if the status is valid
func (s ImportStatus) IsValid() bool {
	switch s {
	case ImportStatusCreated, ImportStatusSkipped, ImportStatusFailed:
		return true
	}
	return false
}

// SkipReasonDuplicateTitle is the reason of a record skipped because a
// product with the same title already exists
const SkipReasonDuplicateTitle = "duplicate_title"

// ImportOutcome is the itemized result of importing one record
type ImportOutcome struct {
	Status        ImportStatus       `json:"status"`
	Title         string             `json:"title"`
	SourceURL     string             `json:"source_url,omitempty"`
	ProductID     int64              `json:"product_id,omitempty"`
	Handle        string             `json:"handle,omitempty"`
	VariantsCount int                `json:"variants_count,omitempty"`
	ImagesCount   int                `json:"images_count,omitempty"`
	Reason        string             `json:"reason,omitempty"`
	FailureKind   FailureKind        `json:"failure_kind,omitempty"`
	Error         string             `json:"error,omitempty"`
	LinkFailures  []ImageLinkFailure `json:"link_failures,omitempty"`
}

// CreatedOutcome builds the outcome of a created product
func CreatedOutcome(record *NormalizedProductRecord, product *CreatedProduct) ImportOutcome {
	return ImportOutcome{
		Status:        ImportStatusCreated,
		Title:         product.Title,
		SourceURL:     record.SourceURL,
		ProductID:     product.ID,
		Handle:        product.Handle,
		VariantsCount: len(product.Variants),
		ImagesCount:   product.ImagesCount,
		LinkFailures:  product.LinkFailures,
	}
}

// SkippedOutcome builds the outcome of a record matching an existing product
func SkippedOutcome(record *NormalizedProductRecord, existing *ProductSummary, reason string) ImportOutcome {
	return ImportOutcome{
		Status:    ImportStatusSkipped,
		Title:     record.Title,
		SourceURL: record.SourceURL,
		ProductID: existing.ID,
		Handle:    existing.Handle,
		Reason:    reason,
	}
}

// FailedOutcome builds the outcome of a record that could not be imported
func FailedOutcome(record *NormalizedProductRecord, err error) ImportOutcome {
	return ImportOutcome{
		Status:      ImportStatusFailed,
		Title:       record.Title,
		SourceURL:   record.SourceURL,
		FailureKind: ClassifyFailure(err),
		Error:       err.Error(),
	}
}

// ImportBatchResult groups the outcomes of a batch by status
type ImportBatchResult struct {
	Created []ImportOutcome `json:"created"`
	Skipped []ImportOutcome `json:"skipped"`
	Failed  []ImportOutcome `json:"failures"`
}

// NewImportBatchResult returns an empty batch result
func NewImportBatchResult() *ImportBatchResult {
	return &ImportBatchResult{
		Created: make([]ImportOutcome, 0),
		Skipped: make([]ImportOutcome, 0),
		Failed:  make([]ImportOutcome, 0),
	}
}

// Add files an outcome under its status
func (r *ImportBatchResult) Add(outcome ImportOutcome) {
	switch outcome.Status {
	case ImportStatusCreated:
		r.Created = append(r.Created, outcome)
	case ImportStatusSkipped:
		r.Skipped = append(r.Skipped, outcome)
	default:
		r.Failed = append(r.Failed, outcome)
	}
}

// Total returns the number of processed records
func (r *ImportBatchResult) Total() int {
	return len(r.Created) + len(r.Skipped) + len(r.Failed)
}

// Summary returns a one-line human readable summary
func (r *ImportBatchResult) Summary() string {
	return fmt.Sprintf("%d product(s) imported, %d skipped (duplicate), %d error(s)",
		len(r.Created), len(r.Skipped), len(r.Failed))
}

// ---------------------------------------------------------------------------
// Import runs
// ---------------------------------------------------------------------------

// ImportRun is the persisted history entry of one batch import
type ImportRun struct {
	ID           uuid.UUID
	Source       string
	TotalCount   int
	CreatedCount int
	SkippedCount int
	FailedCount  int
	Result       *ImportBatchResult
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// NewImportRun starts a run for the given source (http, cli, ...)
func NewImportRun(source string, startedAt time.Time) (*ImportRun, error) {
	if source == "" {
		return nil, shared.NewDomainError("INVALID_SOURCE", "Import source cannot be empty")
	}
	return &ImportRun{
		ID:        uuid.New(),
		Source:    source,
		Result:    NewImportBatchResult(),
		StartedAt: startedAt,
	}, nil
}

// Complete records the batch result on the run
func (r *ImportRun) Complete(result *ImportBatchResult, completedAt time.Time) error {
	if r.CompletedAt != nil {
		return shared.NewDomainError("INVALID_STATE", "Import run already completed")
	}
	if result == nil {
		result = NewImportBatchResult()
	}
	r.Result = result
	r.TotalCount = result.Total()
	r.CreatedCount = len(result.Created)
	r.SkippedCount = len(result.Skipped)
	r.FailedCount = len(result.Failed)
	r.CompletedAt = &completedAt
	return nil
}

// IsCompleted returns true once Complete was called
func (r *ImportRun) IsCompleted() bool {
	return r.CompletedAt != nil
}

// ImportRunRepository persists import runs
type ImportRunRepository interface {
	Save(ctx context.Context, run *ImportRun) error
	FindByID(ctx context.Context, id uuid.UUID) (*ImportRun, error)
	FindRecent(ctx context.Context, limit int) ([]*ImportRun, error)
}

// TitleGuard remembers titles imported recently, possibly by another
// importer process, so a repeated scrape skips the storefront lookup
type TitleGuard interface {
	// Seen returns the product remembered for title, or nil when the title
	// is unknown or expired
	Seen(ctx context.Context, title string) (*ProductSummary, error)
	// Remember records the product created for title for ttl. It returns
	// false when the title was already remembered.
	Remember(ctx context.Context, title string, product ProductSummary, ttl time.Duration) (bool, error)
	Close() error
}
