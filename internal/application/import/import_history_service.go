package importapp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

// ImportHistoryService records import batches and serves their history
type ImportHistoryService struct {
	runRepo integration.ImportRunRepository
	logger  *zap.Logger
	now     func() time.Time
}

// NewImportHistoryService creates a new ImportHistoryService
func NewImportHistoryService(runRepo integration.ImportRunRepository, log *zap.Logger) *ImportHistoryService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ImportHistoryService{
		runRepo: runRepo,
		logger:  log,
		now:     time.Now,
	}
}

// Start creates and stores a run for the given source
func (s *ImportHistoryService) Start(ctx context.Context, source string) (*integration.ImportRun, error) {
	run, err := integration.NewImportRun(source, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.runRepo.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save import run: %w", err)
	}
	return run, nil
}

// Complete stores the batch result on the run
func (s *ImportHistoryService) Complete(ctx context.Context, run *integration.ImportRun, result *integration.ImportBatchResult) error {
	if err := run.Complete(result, s.now().UTC()); err != nil {
		return err
	}
	if err := s.runRepo.Save(ctx, run); err != nil {
		return fmt.Errorf("failed to save import run: %w", err)
	}
	logger.WithLogger(ctx, s.logger).Info("Import run recorded",
		zap.String("run_id", run.ID.String()),
		zap.Int("total", run.TotalCount),
		zap.Int("created", run.CreatedCount),
	)
	return nil
}

// Get returns one run
func (s *ImportHistoryService) Get(ctx context.Context, id uuid.UUID) (*integration.ImportRun, error) {
	return s.runRepo.FindByID(ctx, id)
}

// ListRecent returns the latest runs, newest first
func (s *ImportHistoryService) ListRecent(ctx context.Context, limit int) ([]*integration.ImportRun, error) {
	runs, err := s.runRepo.FindRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list import runs: %w", err)
	}
	return runs, nil
}
