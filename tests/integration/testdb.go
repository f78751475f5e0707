// Package integration runs the import history store and the title guard
// against real PostgreSQL and Redis servers started with testcontainers.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/erp/catalogsync/internal/bootstrap"
	"github.com/erp/catalogsync/internal/infrastructure/config"
	"github.com/erp/catalogsync/internal/infrastructure/persistence"
)

// TestDB is a migrated PostgreSQL database living in its own container
type TestDB struct {
	*persistence.Database
	Config    *config.Config
	Container testcontainers.Container
}

// NewTestDB starts a PostgreSQL container and opens it the way the server
// does, which applies the embedded migrations
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("catalogsync_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("admin123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := &config.Config{
		Log: config.LogConfig{Level: "warn"},
		Database: config.DatabaseConfig{
			Driver:       config.DriverPostgres,
			Host:         host,
			Port:         port.Int(),
			User:         "postgres",
			Password:     "admin123",
			DBName:       "catalogsync_test",
			SSLMode:      "disable",
			MaxOpenConns: 5,
			MaxIdleConns: 2,
		},
	}

	db, err := bootstrap.OpenDatabase(cfg, zaptest.NewLogger(t), nil)
	require.NoError(t, err, "Failed to open and migrate the database")
	t.Cleanup(func() {
		_ = db.Close()
	})

	return &TestDB{Database: db, Config: cfg, Container: container}
}
