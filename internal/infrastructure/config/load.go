package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// CATALOGSYNC_SHOPIFY_ACCESS_TOKEN for shopify.access_token
const EnvPrefix = "CATALOGSYNC"

// defaults registers every key. Keys missing here are invisible to
// AutomaticEnv during Unmarshal, so secrets get an empty default too.
var defaults = map[string]any{
	"app.name": "catalogsync",
	"app.env":  "development",
	"app.port": "8080",

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"database.driver":             DriverSQLite,
	"database.path":               "catalogsync.db",
	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "catalogsync",
	"database.sslmode":            "disable",
	"database.max_open_conns":     10,
	"database.max_idle_conns":     2,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.enabled":  false,
	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"shopify.shop_domain":   "",
	"shopify.access_token":  "",
	"shopify.api_version":   "2024-10",
	"shopify.page_size":     250,
	"shopify.toggle_pacing": 300 * time.Millisecond,
	"shopify.timeout":       30 * time.Second,

	"sellsy.api_url":       "https://api.sellsy.com/v2",
	"sellsy.token_url":     "https://login.sellsy.com/oauth2/access-tokens",
	"sellsy.client_id":     "",
	"sellsy.client_secret": "",
	"sellsy.page_size":     100,
	"sellsy.token_ttl":     time.Hour,
	"sellsy.timeout":       30 * time.Second,

	"sync.rate_limit_delay":        3 * time.Second,
	"sync.max_attempts":            3,
	"sync.ledger_delimiter":        ",",
	"sync.ledger_has_header":       false,
	"sync.ledger_reference_column": 0,
	"sync.ledger_price_column":     5,

	"import.max_batch_size":  500,
	"import.title_guard_ttl": 24 * time.Hour,

	"storage.enabled":            false,
	"storage.bucket":             "",
	"storage.access_key":         "",
	"storage.secret_key":         "",
	"storage.endpoint":           "",
	"storage.use_ssl":            true,
	"storage.region":             "us-east-1",
	"storage.use_path_style":     false,
	"storage.presign_expiration": 15 * time.Minute,
	"storage.report_prefix":      "reports/",

	"http.read_timeout":       15 * time.Second,
	"http.write_timeout":      5 * time.Minute,
	"http.idle_timeout":       60 * time.Second,
	"http.max_header_bytes":   1 << 20,
	"http.max_body_size":      10 << 20,
	"http.cors_allow_origins": []string{},
	"http.trusted_proxies":    []string{},
	"http.import_rate_limit":  30,

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "",
	"telemetry.insecure":                false,
	"telemetry.logs_enabled":            false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,

	"telemetry.profiling_enabled":        false,
	"telemetry.profiling_server_address": "http://localhost:4040",
	"telemetry.profiling_auth_user":      "",
	"telemetry.profiling_auth_password":  "",
	"telemetry.span_profiles_enabled":    false,
}

// Load reads ./config.toml when present, then CATALOGSYNC_ variables.
// Environment wins over the file, the file over built-in defaults.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file, which must exist. An empty
// path searches the working directory and /etc/catalogsync.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/catalogsync")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	db := c.Database
	check(db.Driver == DriverSQLite || db.Driver == DriverPostgres,
		"database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, db.Driver)
	check(db.MaxOpenConns > 0, "database.max_open_conns must be positive")
	check(db.MaxIdleConns <= db.MaxOpenConns,
		"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)

	s := c.Sync
	check(s.MaxAttempts >= 1, "sync.max_attempts must be at least 1")
	check(s.RateLimitDelay >= 0, "sync.rate_limit_delay must not be negative")
	check(utf8.RuneCountInString(s.LedgerDelimiter) == 1,
		"sync.ledger_delimiter must be a single character, got %q", s.LedgerDelimiter)
	check(s.LedgerReferenceColumn >= 0 && s.LedgerPriceColumn >= 0, "sync ledger columns must not be negative")
	check(s.LedgerReferenceColumn != s.LedgerPriceColumn,
		"sync.ledger_reference_column and sync.ledger_price_column must differ")

	check(c.Import.MaxBatchSize > 0, "import.max_batch_size must be positive")
	check(!c.Storage.Enabled || c.Storage.Bucket != "", "storage.bucket is required when storage is enabled")
	check(c.Telemetry.SamplingRatio >= 0 && c.Telemetry.SamplingRatio <= 1,
		"telemetry.sampling_ratio must be between 0 and 1, got %v", c.Telemetry.SamplingRatio)
	check(!c.Telemetry.ProfilingEnabled || c.Telemetry.ProfilingServerAddress != "",
		"telemetry.profiling_server_address is required when profiling is enabled")

	if c.App.Env == "production" {
		if db.Driver == DriverPostgres {
			check(db.Password != "", "database.password is required in production")
			check(db.SSLMode != "disable", "database.sslmode cannot be 'disable' in production")
		}
		check(!slices.Contains(c.HTTP.CORSAllowOrigins, "*"), "http.cors_allow_origins cannot be '*' in production")
		check(!c.Telemetry.DBLogFullSQL, "telemetry.db_log_full_sql must be off in production")
	}

	return errors.Join(errs...)
}
