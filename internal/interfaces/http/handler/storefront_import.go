package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/interfaces/http/dto"
	"github.com/erp/catalogsync/internal/interfaces/http/middleware"
)

// ImportSourceHTTP tags import runs started through the API
const ImportSourceHTTP = "http"

const defaultHistoryLimit = 20

// ProductImporter imports scraped product batches
type ProductImporter interface {
	CheckBatchSize(n int) error
	ImportBatch(ctx context.Context, records []*integration.NormalizedProductRecord) (*integration.ImportBatchResult, error)
}

// ImportHistory records import runs
type ImportHistory interface {
	Start(ctx context.Context, source string) (*integration.ImportRun, error)
	Complete(ctx context.Context, run *integration.ImportRun, result *integration.ImportBatchResult) error
	ListRecent(ctx context.Context, limit int) ([]*integration.ImportRun, error)
}

// StorefrontImportHandler serves the scraper import API
type StorefrontImportHandler struct {
	importer ProductImporter
	history  ImportHistory
}

// NewStorefrontImportHandler creates a new StorefrontImportHandler. history
// may be nil, in which case runs are not recorded.
func NewStorefrontImportHandler(importer ProductImporter, history ImportHistory) *StorefrontImportHandler {
	return &StorefrontImportHandler{importer: importer, history: history}
}

// Import handles POST /storefront/import
func (h *StorefrontImportHandler) Import(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.L(ctx)

	var req dto.ImportProductsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			middleware.HandleValidationError(c, err)
			return
		}
		writeError(c, dto.ErrCodeInvalidJSON, "Request body must be a JSON object with a products array")
		return
	}
	if err := h.importer.CheckBatchSize(len(req.Products)); err != nil {
		writeFailure(c, err)
		return
	}
	log.Info("Import batch received", zap.Int("products", len(req.Products)))

	records := make([]*integration.NormalizedProductRecord, 0, len(req.Products))
	rejected := make([]integration.ImportOutcome, 0)
	for _, p := range req.Products {
		record, err := p.ToRecord()
		if err != nil {
			outcome := integration.FailedOutcome(record, err)
			outcome.FailureKind = integration.FailureValidationRejected
			rejected = append(rejected, outcome)
			continue
		}
		records = append(records, record)
	}

	run := h.startRun(ctx)

	result := integration.NewImportBatchResult()
	if len(records) > 0 {
		batch, err := h.importer.ImportBatch(ctx, records)
		if batch == nil {
			writeFailure(c, err)
			return
		}
		if err != nil {
			log.Warn("Import batch interrupted", zap.Error(err))
		}
		result = batch
	}
	for _, outcome := range rejected {
		result.Add(outcome)
	}

	runID := ""
	if run != nil {
		runID = run.ID.String()
		if err := h.history.Complete(ctx, run, result); err != nil {
			log.Warn("Failed to record import run", zap.String("run_id", runID), zap.Error(err))
		}
	}

	log.Info("Import batch done", zap.String("summary", result.Summary()))
	c.JSON(http.StatusOK, dto.NewImportProductsResponse(result, runID))
}

func (h *StorefrontImportHandler) startRun(ctx context.Context) *integration.ImportRun {
	if h.history == nil {
		return nil
	}
	run, err := h.history.Start(ctx, ImportSourceHTTP)
	if err != nil {
		logger.L(ctx).Warn("Failed to start import run", zap.Error(err))
		return nil
	}
	return run
}

// ListImports handles GET /storefront/imports
func (h *StorefrontImportHandler) ListImports(c *gin.Context) {
	if h.history == nil {
		writeOK(c, []dto.ImportRunResponse{})
		return
	}

	var req dto.LimitRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultHistoryLimit
	}

	runs, err := h.history.ListRecent(c.Request.Context(), req.Limit)
	if err != nil {
		writeFailure(c, err)
		return
	}
	writeOK(c, dto.NewImportRunResponses(runs))
}
