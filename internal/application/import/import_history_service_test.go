package importapp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/shared"
)

// MockImportRunRepository is a mock implementation of integration.ImportRunRepository
type MockImportRunRepository struct {
	mock.Mock
}

var _ integration.ImportRunRepository = (*MockImportRunRepository)(nil)

func (m *MockImportRunRepository) Save(ctx context.Context, run *integration.ImportRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockImportRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.ImportRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ImportRun), args.Error(1)
}

func (m *MockImportRunRepository) FindRecent(ctx context.Context, limit int) ([]*integration.ImportRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.ImportRun), args.Error(1)
}

func TestImportHistoryService_StartAndComplete(t *testing.T) {
	repo := new(MockImportRunRepository)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*integration.ImportRun")).Return(nil).Twice()

	svc := NewImportHistoryService(repo, nil)
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	run, err := svc.Start(context.Background(), "http")
	require.NoError(t, err)
	assert.Equal(t, "http", run.Source)
	assert.Equal(t, fixed, run.StartedAt)
	assert.False(t, run.IsCompleted())

	result := integration.NewImportBatchResult()
	result.Add(integration.ImportOutcome{Status: integration.ImportStatusCreated, Title: "Chair"})
	result.Add(integration.ImportOutcome{Status: integration.ImportStatusSkipped, Title: "Desk"})
	result.Add(integration.ImportOutcome{Status: integration.ImportStatusFailed, Title: "Lamp"})

	require.NoError(t, svc.Complete(context.Background(), run, result))
	assert.True(t, run.IsCompleted())
	assert.Equal(t, 3, run.TotalCount)
	assert.Equal(t, 1, run.CreatedCount)
	assert.Equal(t, 1, run.SkippedCount)
	assert.Equal(t, 1, run.FailedCount)
	repo.AssertExpectations(t)
}

func TestImportHistoryService_Errors(t *testing.T) {
	t.Run("empty source", func(t *testing.T) {
		repo := new(MockImportRunRepository)
		_, err := NewImportHistoryService(repo, nil).Start(context.Background(), "")
		require.Error(t, err)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("save failure", func(t *testing.T) {
		repo := new(MockImportRunRepository)
		repo.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		_, err := NewImportHistoryService(repo, nil).Start(context.Background(), "cli")
		assert.ErrorContains(t, err, "disk full")
	})

	t.Run("completing twice", func(t *testing.T) {
		repo := new(MockImportRunRepository)
		repo.On("Save", mock.Anything, mock.Anything).Return(nil)
		svc := NewImportHistoryService(repo, nil)

		run, err := svc.Start(context.Background(), "http")
		require.NoError(t, err)
		require.NoError(t, svc.Complete(context.Background(), run, nil))

		err = svc.Complete(context.Background(), run, nil)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_STATE", domainErr.Code)
	})

	t.Run("unknown run", func(t *testing.T) {
		repo := new(MockImportRunRepository)
		id := uuid.New()
		repo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

		_, err := NewImportHistoryService(repo, nil).Get(context.Background(), id)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestImportHistoryService_ListRecent(t *testing.T) {
	repo := new(MockImportRunRepository)
	runs := []*integration.ImportRun{{ID: uuid.New(), Source: "http"}}
	repo.On("FindRecent", mock.Anything, 10).Return(runs, nil)

	got, err := NewImportHistoryService(repo, nil).ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, runs, got)
}
