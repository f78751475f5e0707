// Package config loads catalogsync settings from config.toml and
// CATALOGSYNC_ environment variables.
package config

import (
	"net"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"
)

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the full configuration of the server and the CLIs
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Shopify   ShopifyConfig   `mapstructure:"shopify"`
	Sellsy    SellsyConfig    `mapstructure:"sellsy"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Import    ImportConfig    `mapstructure:"import"`
	Storage   StorageConfig   `mapstructure:"storage"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"` // "production" tightens validation
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
	Output string `mapstructure:"output"` // stdout, stderr or a file
}

// DatabaseConfig locates the import history store. Path applies to SQLite,
// the remaining fields to PostgreSQL.
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Path            string `mapstructure:"path"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

// DSN renders the PostgreSQL URL with user and password escaped
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig locates the shared title guard
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

type ShopifyConfig struct {
	ShopDomain   string        `mapstructure:"shop_domain"`
	AccessToken  string        `mapstructure:"access_token"`
	APIVersion   string        `mapstructure:"api_version"`
	PageSize     int           `mapstructure:"page_size"`
	TogglePacing time.Duration `mapstructure:"toggle_pacing"` // pause between inventory tracking toggles
	Timeout      time.Duration `mapstructure:"timeout"`
}

type SellsyConfig struct {
	APIURL       string        `mapstructure:"api_url"`
	TokenURL     string        `mapstructure:"token_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	PageSize     int           `mapstructure:"page_size"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"` // when the token response has no expires_in
	Timeout      time.Duration `mapstructure:"timeout"`
}

// SyncConfig is the outbound retry policy and the purchase ledger layout.
// Ledger columns are zero based.
type SyncConfig struct {
	RateLimitDelay        time.Duration `mapstructure:"rate_limit_delay"`
	MaxAttempts           int           `mapstructure:"max_attempts"`
	LedgerDelimiter       string        `mapstructure:"ledger_delimiter"`
	LedgerHasHeader       bool          `mapstructure:"ledger_has_header"`
	LedgerReferenceColumn int           `mapstructure:"ledger_reference_column"`
	LedgerPriceColumn     int           `mapstructure:"ledger_price_column"`
}

// LedgerDelimiterRune returns the ledger delimiter as a rune
func (s SyncConfig) LedgerDelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(s.LedgerDelimiter)
	return r
}

type ImportConfig struct {
	MaxBatchSize  int           `mapstructure:"max_batch_size"`
	TitleGuardTTL time.Duration `mapstructure:"title_guard_ttl"`
}

// StorageConfig is the S3 compatible bucket holding ledgers and archived
// reports
type StorageConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Bucket            string        `mapstructure:"bucket"`
	AccessKey         string        `mapstructure:"access_key"`
	SecretKey         string        `mapstructure:"secret_key"`
	Endpoint          string        `mapstructure:"endpoint"`
	UseSSL            bool          `mapstructure:"use_ssl"`
	Region            string        `mapstructure:"region"`
	UsePathStyle      bool          `mapstructure:"use_path_style"`
	PresignExpiration time.Duration `mapstructure:"presign_expiration"`
	ReportPrefix      string        `mapstructure:"report_prefix"`
}

type HTTPConfig struct {
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes   int           `mapstructure:"max_header_bytes"`
	MaxBodySize      int64         `mapstructure:"max_body_size"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`
	ImportRateLimit  int           `mapstructure:"import_rate_limit"` // per client IP and minute
}

// TelemetryConfig drives OTLP export. The DB fields control otelgorm; the
// profiling fields the Pyroscope agent, which runs even with export off.
type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"` // defaults to app.name
	Insecure          bool          `mapstructure:"insecure"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"` // zap entries exported over OTLP
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`

	ProfilingEnabled       bool   `mapstructure:"profiling_enabled"`
	ProfilingServerAddress string `mapstructure:"profiling_server_address"`
	ProfilingAuthUser      string `mapstructure:"profiling_auth_user"`
	ProfilingAuthPassword  string `mapstructure:"profiling_auth_password"`
	SpanProfilesEnabled    bool   `mapstructure:"span_profiles_enabled"`
}
