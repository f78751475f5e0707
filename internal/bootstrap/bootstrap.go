// Package bootstrap builds the infrastructure shared by the commands from
// the loaded configuration.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/infrastructure/config"
	"github.com/erp/catalogsync/internal/infrastructure/ecommerce"
	"github.com/erp/catalogsync/internal/infrastructure/erp"
	"github.com/erp/catalogsync/internal/infrastructure/httpclient"
	csvimport "github.com/erp/catalogsync/internal/infrastructure/import"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/infrastructure/migration"
	"github.com/erp/catalogsync/internal/infrastructure/persistence"
	"github.com/erp/catalogsync/internal/infrastructure/storage"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
	"github.com/erp/catalogsync/migrations"
)

// LoadDotEnv loads the given env files (".env" when none) into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// NewLogger creates the server logger from the log section
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	return logger.New(&logger.Config{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
}

// Telemetry owns the OpenTelemetry providers, the profiler and the platform
// call instruments
type Telemetry struct {
	providers   *telemetry.Providers
	profiler    *telemetry.Profiler
	serviceName string
	Platform    *telemetry.PlatformMetrics
	DB          *telemetry.GormTracing // nil unless database tracing is on
}

// NewTelemetry starts tracing, metrics and log export when telemetry is
// enabled, and the profiler when profiling is; otherwise every instrument is
// a no-op
func NewTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Telemetry, error) {
	tc := cfg.Telemetry
	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     tc.SamplingRatio,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
		Logs:              tc.LogsEnabled,
	}, log)
	if err != nil {
		return nil, err
	}

	platform, err := telemetry.NewPlatformMetrics(providers.Meter("catalogsync/platform"))
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, fmt.Errorf("failed to register platform metrics: %w", err)
	}

	profiler, err := telemetry.StartProfiler(telemetry.ProfilerConfig{
		Enabled:           tc.ProfilingEnabled,
		ServerAddress:     tc.ProfilingServerAddress,
		ApplicationName:   tc.ServiceName,
		BasicAuthUser:     tc.ProfilingAuthUser,
		BasicAuthPassword: tc.ProfilingAuthPassword,
	}, log)
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, err
	}
	if tc.ProfilingEnabled && tc.SpanProfilesEnabled && !providers.EnableSpanProfiles() {
		log.Warn("Span profiles need telemetry.enabled, ignored")
	}

	var dbTracing *telemetry.GormTracing
	if tc.Enabled && tc.DBTraceEnabled {
		system := "sqlite"
		if cfg.Database.Driver == config.DriverPostgres {
			system = "postgresql"
		}
		dbTracing = telemetry.NewGormTracing(system, log.Named("gorm"),
			telemetry.WithQueryVariables(tc.DBLogFullSQL),
			telemetry.WithSlowQuery(tc.DBSlowQueryThresh),
		)
	}

	return &Telemetry{
		providers:   providers,
		profiler:    profiler,
		serviceName: tc.ServiceName,
		Platform:    platform,
		DB:          dbTracing,
	}, nil
}

// Logger returns log also exported over OTLP when telemetry.logs_enabled is
// set, log itself otherwise. fields are the ones already bound to log.
func (t *Telemetry) Logger(log *zap.Logger, fields ...zap.Field) *zap.Logger {
	return t.providers.Bridge(log, t.serviceName, fields...)
}

// Shutdown stops the profiler then flushes pending logs, metrics and spans
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.profiler.Stop(), t.providers.Shutdown(ctx))
}

// OpenDatabase connects the import history store and brings its schema up
// to date: AutoMigrate on SQLite, the embedded migrations on PostgreSQL
func OpenDatabase(cfg *config.Config, log *zap.Logger, dbTracing *telemetry.GormTracing) (*persistence.Database, error) {
	opts := []persistence.DatabaseOption{
		persistence.WithLogger(log, logger.GormLevel(cfg.Log.Level)),
		persistence.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
	}
	if dbTracing != nil {
		opts = append(opts, persistence.WithTracing(dbTracing))
	}

	db, err := persistence.NewDatabase(&cfg.Database, opts...)
	if err != nil {
		return nil, err
	}

	if db.Driver() == config.DriverSQLite {
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	if err := migratePostgres(&cfg.Database, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// migratePostgres applies the embedded migrations over a short-lived
// connection of its own
func migratePostgres(cfg *config.DatabaseConfig, log *zap.Logger) error {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	migrator, err := migration.Open(sqlDB, migrations.FS, log.Named("migrate"))
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			log.Warn("Error closing migrator", zap.Error(err))
		}
	}()
	return migrator.Up()
}

// SyncPolicy returns the outbound retry policy of the sync section
func SyncPolicy(cfg config.SyncConfig) httpclient.Policy {
	return httpclient.Policy{
		MaxAttempts:    cfg.MaxAttempts,
		RateLimitDelay: cfg.RateLimitDelay,
	}
}

// NewShopifyClient creates the storefront client
func NewShopifyClient(cfg *config.Config, log *zap.Logger, metrics *telemetry.PlatformMetrics) (*ecommerce.ShopifyClient, error) {
	sc := cfg.Shopify
	return ecommerce.NewShopifyClient(&ecommerce.ShopifyConfig{
		ShopDomain:   sc.ShopDomain,
		AccessToken:  sc.AccessToken,
		APIVersion:   sc.APIVersion,
		PageSize:     sc.PageSize,
		TogglePacing: sc.TogglePacing,
		Timeout:      sc.Timeout,
	},
		ecommerce.WithLogger(log.Named("shopify")),
		ecommerce.WithMetrics(metrics),
		ecommerce.WithPolicy(SyncPolicy(cfg.Sync)),
	)
}

// NewSellsyClient creates the ERP client
func NewSellsyClient(cfg *config.Config, log *zap.Logger, metrics *telemetry.PlatformMetrics) (*erp.SellsyClient, error) {
	sc := cfg.Sellsy
	return erp.NewSellsyClient(&erp.SellsyConfig{
		APIBaseURL:   sc.APIURL,
		TokenURL:     sc.TokenURL,
		ClientID:     sc.ClientID,
		ClientSecret: sc.ClientSecret,
		PageSize:     sc.PageSize,
		TokenTTL:     sc.TokenTTL,
		Timeout:      sc.Timeout,
	},
		erp.WithLogger(log.Named("sellsy")),
		erp.WithMetrics(metrics),
		erp.WithPolicy(SyncPolicy(cfg.Sync)),
	)
}

// NewObjectStorage returns the S3 bucket client, or nil when storage is
// disabled
func NewObjectStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (*storage.Bucket, error) {
	if !cfg.Storage.Enabled {
		return nil, nil
	}
	return storage.NewBucket(ctx, &cfg.Storage, log.Named("storage"))
}

// LedgerConfig returns the purchase ledger layout of the sync section
func LedgerConfig(cfg config.SyncConfig) csvimport.LedgerConfig {
	lc := csvimport.DefaultLedgerConfig()
	if r := []rune(cfg.LedgerDelimiter); len(r) == 1 {
		lc.Delimiter = r[0]
	}
	lc.HasHeader = cfg.LedgerHasHeader
	lc.ReferenceColumn = cfg.LedgerReferenceColumn
	lc.PriceColumn = cfg.LedgerPriceColumn
	return lc
}
