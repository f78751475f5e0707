package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "catalogsync", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, DriverSQLite, cfg.Database.Driver)
		assert.Equal(t, "catalogsync.db", cfg.Database.Path)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, "2024-10", cfg.Shopify.APIVersion)
		assert.Equal(t, 250, cfg.Shopify.PageSize)
		assert.Equal(t, 300*time.Millisecond, cfg.Shopify.TogglePacing)
		assert.Equal(t, 100, cfg.Sellsy.PageSize)
		assert.Equal(t, time.Hour, cfg.Sellsy.TokenTTL)
		assert.Equal(t, 3*time.Second, cfg.Sync.RateLimitDelay)
		assert.Equal(t, 3, cfg.Sync.MaxAttempts)
		assert.Equal(t, ',', cfg.Sync.LedgerDelimiterRune())
		assert.Equal(t, 0, cfg.Sync.LedgerReferenceColumn)
		assert.Equal(t, 5, cfg.Sync.LedgerPriceColumn)
		assert.Equal(t, 24*time.Hour, cfg.Import.TitleGuardTTL)
		assert.Equal(t, "catalogsync", cfg.Telemetry.ServiceName)
	})

	t.Run("loads values from environment variables with CATALOGSYNC prefix", func(t *testing.T) {
		t.Setenv("CATALOGSYNC_APP_PORT", "9000")
		t.Setenv("CATALOGSYNC_SHOPIFY_SHOP_DOMAIN", "acme.myshopify.com")
		t.Setenv("CATALOGSYNC_SHOPIFY_ACCESS_TOKEN", "shpat_test")
		t.Setenv("CATALOGSYNC_SELLSY_CLIENT_ID", "client")
		t.Setenv("CATALOGSYNC_SELLSY_CLIENT_SECRET", "secret")
		t.Setenv("CATALOGSYNC_SYNC_RATE_LIMIT_DELAY", "500ms")
		t.Setenv("CATALOGSYNC_SYNC_LEDGER_DELIMITER", ";")
		t.Setenv("CATALOGSYNC_SYNC_LEDGER_PRICE_COLUMN", "3")
		t.Setenv("CATALOGSYNC_DATABASE_DRIVER", "postgres")
		t.Setenv("CATALOGSYNC_DATABASE_HOST", "db.local")
		t.Setenv("CATALOGSYNC_REDIS_ENABLED", "true")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "acme.myshopify.com", cfg.Shopify.ShopDomain)
		assert.Equal(t, "shpat_test", cfg.Shopify.AccessToken)
		assert.Equal(t, "client", cfg.Sellsy.ClientID)
		assert.Equal(t, "secret", cfg.Sellsy.ClientSecret)
		assert.Equal(t, 500*time.Millisecond, cfg.Sync.RateLimitDelay)
		assert.Equal(t, ';', cfg.Sync.LedgerDelimiterRune())
		assert.Equal(t, 3, cfg.Sync.LedgerPriceColumn)
		assert.Equal(t, DriverPostgres, cfg.Database.Driver)
		assert.Equal(t, "db.local", cfg.Database.Host)
		assert.True(t, cfg.Redis.Enabled)
	})

	t.Run("reads an explicit TOML file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalogsync.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
[shopify]
shop_domain = "file.myshopify.com"

[sync]
max_attempts = 5
ledger_has_header = true
`), 0o600))

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "file.myshopify.com", cfg.Shopify.ShopDomain)
		assert.Equal(t, 5, cfg.Sync.MaxAttempts)
		assert.True(t, cfg.Sync.LedgerHasHeader)
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown driver",
			env:     map[string]string{"CATALOGSYNC_DATABASE_DRIVER": "mysql"},
			wantErr: "database.driver",
		},
		{
			name: "idle exceeds open",
			env: map[string]string{
				"CATALOGSYNC_DATABASE_MAX_OPEN_CONNS": "2",
				"CATALOGSYNC_DATABASE_MAX_IDLE_CONNS": "5",
			},
			wantErr: "cannot exceed",
		},
		{
			name:    "multi-character delimiter",
			env:     map[string]string{"CATALOGSYNC_SYNC_LEDGER_DELIMITER": ";;"},
			wantErr: "single character",
		},
		{
			name: "same ledger columns",
			env: map[string]string{
				"CATALOGSYNC_SYNC_LEDGER_REFERENCE_COLUMN": "2",
				"CATALOGSYNC_SYNC_LEDGER_PRICE_COLUMN":     "2",
			},
			wantErr: "must differ",
		},
		{
			name:    "storage enabled without bucket",
			env:     map[string]string{"CATALOGSYNC_STORAGE_ENABLED": "true"},
			wantErr: "storage.bucket",
		},
		{
			name:    "sampling ratio out of range",
			env:     map[string]string{"CATALOGSYNC_TELEMETRY_SAMPLING_RATIO": "1.5"},
			wantErr: "sampling_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ProductionValidation(t *testing.T) {
	setProductionPostgres := func(t *testing.T) {
		t.Setenv("CATALOGSYNC_APP_ENV", "production")
		t.Setenv("CATALOGSYNC_DATABASE_DRIVER", "postgres")
		t.Setenv("CATALOGSYNC_DATABASE_PASSWORD", "secure-password")
		t.Setenv("CATALOGSYNC_DATABASE_SSLMODE", "require")
	}

	t.Run("requires database.password for postgres", func(t *testing.T) {
		setProductionPostgres(t)
		t.Setenv("CATALOGSYNC_DATABASE_PASSWORD", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL for postgres", func(t *testing.T) {
		setProductionPostgres(t)
		t.Setenv("CATALOGSYNC_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("rejects full SQL logging", func(t *testing.T) {
		setProductionPostgres(t)
		t.Setenv("CATALOGSYNC_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})

	t.Run("sqlite needs no credentials", func(t *testing.T) {
		t.Setenv("CATALOGSYNC_APP_ENV", "production")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})

	t.Run("passes with valid postgres config", func(t *testing.T) {
		setProductionPostgres(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "/testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}
		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	t.Setenv("CATALOGSYNC_SYNC_MAX_ATTEMPTS", "0")
	t.Setenv("CATALOGSYNC_IMPORT_MAX_BATCH_SIZE", "0")
	t.Setenv("CATALOGSYNC_TELEMETRY_SAMPLING_RATIO", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.max_attempts")
	assert.Contains(t, err.Error(), "import.max_batch_size")
	assert.Contains(t, err.Error(), "telemetry.sampling_ratio")
}

func TestLoad_ServiceName(t *testing.T) {
	t.Setenv("CATALOGSYNC_APP_NAME", "catalogsync-eu")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "catalogsync-eu", cfg.Telemetry.ServiceName)

	t.Setenv("CATALOGSYNC_TELEMETRY_SERVICE_NAME", "importer")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "importer", cfg.Telemetry.ServiceName)
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache.local:6380", RedisConfig{Host: "cache.local", Port: 6380}.Addr())
}

func TestLoad_Profiling(t *testing.T) {
	t.Setenv("CATALOGSYNC_TELEMETRY_PROFILING_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Telemetry.ProfilingEnabled)
	assert.Equal(t, "http://localhost:4040", cfg.Telemetry.ProfilingServerAddress)
	assert.False(t, cfg.Telemetry.LogsEnabled)

	cfg.Telemetry.ProfilingServerAddress = ""
	assert.ErrorContains(t, cfg.validate(), "telemetry.profiling_server_address")
}
