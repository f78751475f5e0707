package importapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
)

// SkipReasonRecentlyImported is the reason of a record whose title was
// created by a recent batch, possibly in another process
const SkipReasonRecentlyImported = "recently_imported"

const (
	defaultMaxBatchSize  = 500
	defaultTitleGuardTTL = 24 * time.Hour
)

var (
	// ErrEmptyBatch is returned when a batch carries no record
	ErrEmptyBatch = shared.NewDomainError("EMPTY_BATCH", "No products provided")
	// ErrBatchTooLarge is returned when a batch exceeds the configured maximum
	ErrBatchTooLarge = shared.NewDomainError("BATCH_TOO_LARGE", "Too many products in one batch")
)

// ProductImportService creates scraped products on the storefront, skipping
// titles that already exist
type ProductImportService struct {
	creator      integration.ProductCreator
	titleGuard   integration.TitleGuard
	guardTTL     time.Duration
	maxBatchSize int
	logger       *zap.Logger
}

// ProductImportOption configures a ProductImportService
type ProductImportOption func(*ProductImportService)

// WithTitleGuard remembers created titles in guard for ttl
func WithTitleGuard(guard integration.TitleGuard, ttl time.Duration) ProductImportOption {
	return func(s *ProductImportService) {
		s.titleGuard = guard
		if ttl > 0 {
			s.guardTTL = ttl
		}
	}
}

// WithMaxBatchSize caps the number of records accepted by ImportBatch
func WithMaxBatchSize(n int) ProductImportOption {
	return func(s *ProductImportService) {
		if n > 0 {
			s.maxBatchSize = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) ProductImportOption {
	return func(s *ProductImportService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewProductImportService creates a new ProductImportService
func NewProductImportService(creator integration.ProductCreator, opts ...ProductImportOption) *ProductImportService {
	s := &ProductImportService{
		creator:      creator,
		guardTTL:     defaultTitleGuardTTL,
		maxBatchSize: defaultMaxBatchSize,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxBatchSize returns the largest accepted batch
func (s *ProductImportService) MaxBatchSize() int {
	return s.maxBatchSize
}

// CheckBatchSize rejects empty batches and batches over the maximum
func (s *ProductImportService) CheckBatchSize(n int) error {
	if n == 0 {
		return ErrEmptyBatch
	}
	if n > s.maxBatchSize {
		return fmt.Errorf("%w: %d records, at most %d", ErrBatchTooLarge, n, s.maxBatchSize)
	}
	return nil
}

// Import imports one record. Errors are reported in the outcome, never returned.
func (s *ProductImportService) Import(ctx context.Context, record *integration.NormalizedProductRecord) integration.ImportOutcome {
	ctx, span := telemetry.Start(ctx, "import.product",
		telemetry.KeyTitle.String(record.Title),
	)
	defer span.End()

	log := logger.WithLogger(ctx, s.logger).With(zap.String("title", record.Title))

	if err := record.Validate(); err != nil {
		log.Warn("Product record rejected", zap.Error(err))
		outcome := integration.FailedOutcome(record, err)
		outcome.FailureKind = integration.FailureValidationRejected
		telemetry.RecordError(span, err)
		return outcome
	}
	title := strings.TrimSpace(record.Title)

	if recent := s.recentlyImported(ctx, title); recent != nil {
		log.Info("Product skipped, title imported recently",
			zap.Int64("product_id", recent.ID),
			zap.String("handle", recent.Handle),
		)
		return integration.SkippedOutcome(record, recent, SkipReasonRecentlyImported)
	}

	existing, err := s.creator.FindProductByTitle(ctx, title)
	if err != nil {
		log.Error("Title lookup failed", zap.Error(err))
		telemetry.RecordError(span, err)
		return integration.FailedOutcome(record, fmt.Errorf("failed to look up title: %w", err))
	}
	if existing != nil {
		log.Info("Product skipped, title already exists",
			zap.Int64("product_id", existing.ID),
			zap.String("handle", existing.Handle),
		)
		return integration.SkippedOutcome(record, existing, integration.SkipReasonDuplicateTitle)
	}

	created, err := s.creator.Create(ctx, record)
	if err != nil {
		log.Error("Product creation failed", zap.Error(err))
		telemetry.RecordError(span, err)
		return integration.FailedOutcome(record, err)
	}
	s.markImported(ctx, title, created)

	log.Info("Product created",
		zap.Int64("product_id", created.ID),
		zap.String("handle", created.Handle),
		zap.Int("variants", len(created.Variants)),
		zap.Int("image_link_failures", len(created.LinkFailures)),
	)
	telemetry.SetOK(span)
	return integration.CreatedOutcome(record, created)
}

// ImportBatch imports records one after the other. A failing record never
// stops the batch.
func (s *ProductImportService) ImportBatch(ctx context.Context, records []*integration.NormalizedProductRecord) (*integration.ImportBatchResult, error) {
	if err := s.CheckBatchSize(len(records)); err != nil {
		return nil, err
	}

	result := integration.NewImportBatchResult()
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if record == nil {
			continue
		}
		result.Add(s.Import(ctx, record))
	}

	logger.WithLogger(ctx, s.logger).Info("Import batch finished",
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (s *ProductImportService) recentlyImported(ctx context.Context, title string) *integration.ProductSummary {
	if s.titleGuard == nil {
		return nil
	}
	recent, err := s.titleGuard.Seen(ctx, title)
	if err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Title guard unavailable", zap.Error(err))
		return nil
	}
	// entries without an id fall through to the storefront lookup
	if recent != nil && recent.ID == 0 {
		return nil
	}
	return recent
}

func (s *ProductImportService) markImported(ctx context.Context, title string, created *integration.CreatedProduct) {
	if s.titleGuard == nil {
		return
	}
	product := integration.ProductSummary{ID: created.ID, Handle: created.Handle, Title: title}
	if _, err := s.titleGuard.Remember(ctx, title, product, s.guardTTL); err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Failed to remember imported title", zap.Error(err))
	}
}

// IsBatchError reports whether err rejects a whole batch
func IsBatchError(err error) bool {
	return errors.Is(err, ErrEmptyBatch) || errors.Is(err, ErrBatchTooLarge)
}
