// Package models maps import history onto database rows.
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/catalogsync/internal/domain/integration"
)

// ImportRunModel is one row of import_runs. Details holds the per-product
// outcomes as JSON.
type ImportRunModel struct {
	ID           uuid.UUID                      `gorm:"type:uuid;primaryKey"`
	Source       string                         `gorm:"type:varchar(32);not null"`
	TotalCount   int                            `gorm:"not null;default:0"`
	CreatedCount int                            `gorm:"not null;default:0"`
	SkippedCount int                            `gorm:"not null;default:0"`
	FailedCount  int                            `gorm:"not null;default:0"`
	Details      *integration.ImportBatchResult `gorm:"type:text;serializer:json"`
	StartedAt    time.Time                      `gorm:"not null;index"`
	CompletedAt  *time.Time
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ImportRunModel) TableName() string {
	return "import_runs"
}

// ToDomain converts the persistence model to a domain ImportRun
func (m *ImportRunModel) ToDomain() *integration.ImportRun {
	result := m.Details
	if result == nil {
		result = integration.NewImportBatchResult()
	}
	return &integration.ImportRun{
		ID:           m.ID,
		Source:       m.Source,
		TotalCount:   m.TotalCount,
		CreatedCount: m.CreatedCount,
		SkippedCount: m.SkippedCount,
		FailedCount:  m.FailedCount,
		Result:       result,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
	}
}

// NewImportRunModel builds the row of run
func NewImportRunModel(run *integration.ImportRun) *ImportRunModel {
	return &ImportRunModel{
		ID:           run.ID,
		Source:       run.Source,
		TotalCount:   run.TotalCount,
		CreatedCount: run.CreatedCount,
		SkippedCount: run.SkippedCount,
		FailedCount:  run.FailedCount,
		Details:      run.Result,
		StartedAt:    run.StartedAt,
		CompletedAt:  run.CompletedAt,
	}
}
