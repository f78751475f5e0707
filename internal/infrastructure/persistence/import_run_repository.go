package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/persistence/models"
)

const (
	defaultRecentRuns = 20
	maxRecentRuns     = 100
)

// GormImportRunRepository implements integration.ImportRunRepository using GORM
type GormImportRunRepository struct {
	db *gorm.DB
}

var _ integration.ImportRunRepository = (*GormImportRunRepository)(nil)

// NewGormImportRunRepository creates a new GormImportRunRepository
func NewGormImportRunRepository(db *gorm.DB) *GormImportRunRepository {
	return &GormImportRunRepository{db: db}
}

// Save inserts the run, or rewrites its counts and details when it exists
func (r *GormImportRunRepository) Save(ctx context.Context, run *integration.ImportRun) error {
	if run == nil {
		return shared.ErrInvalidInput
	}
	model := models.NewImportRunModel(run)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_count", "created_count", "skipped_count", "failed_count",
				"details", "completed_at", "updated_at",
			}),
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to save import run: %w", err)
	}
	return nil
}

// FindByID finds an import run by ID
func (r *GormImportRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.ImportRun, error) {
	var model models.ImportRunModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindRecent returns the latest runs, most recent first. limit is clamped to
// [1, 100]; zero or negative selects 20.
func (r *GormImportRunRepository) FindRecent(ctx context.Context, limit int) ([]*integration.ImportRun, error) {
	switch {
	case limit <= 0:
		limit = defaultRecentRuns
	case limit > maxRecentRuns:
		limit = maxRecentRuns
	}

	var runModels []models.ImportRunModel
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runModels).Error; err != nil {
		return nil, err
	}

	runs := make([]*integration.ImportRun, len(runModels))
	for i := range runModels {
		runs[i] = runModels[i].ToDomain()
	}
	return runs, nil
}
