package config

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Storage   StorageConfig
	Chrome    ChromeConfig
	Export    ExportConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SQLitePath      string // file path or :memory: when Driver is sqlite
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// StorageConfig holds artifact storage settings
type StorageConfig struct {
	Type              string // local or s3
	LocalPath         string // root directory when Type is local
	BaseURL           string // URL prefix for local artifacts
	Bucket            string
	Endpoint          string
	Region            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	PresignExpiration time.Duration
	Retention         time.Duration // local artifacts older than this are swept; 0 keeps them
}

// ChromeConfig holds headless Chrome settings
type ChromeConfig struct {
	RemoteURL      string // ws:// URL of a running browser; empty launches one
	NoSandbox      bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
}

// ExportConfig holds image export defaults
type ExportConfig struct {
	Scale            float64
	Padding          int
	WhiteThreshold   int
	SampleStep       int
	Background       string // #rrggbb or #rrggbbaa
	ReadinessTimeout time.Duration
	CacheEnabled     bool
	CacheTTL         time.Duration
	CurrencySymbol   string
	MaxHTMLBytes     int
	DefaultTenantID  uuid.UUID

	// MaxPixels bounds the rasterized bitmap; 0 uses the engine default
	MaxPixels int

	// MaxConcurrentRenders bounds the Chrome tabs open at once
	MaxConcurrentRenders int
	// RenderRateLimit requests per RenderRateWindow per tenant and client IP;
	// 0 disables limiting
	RenderRateLimit  int
	RenderRateWindow time.Duration
}

// TelemetryConfig holds OpenTelemetry settings
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	Insecure          bool
	MetricsInterval   time.Duration
	DBTracing         bool
	DBSlowQuery       time.Duration
	ExportLogs        bool
	LogLevel          string // minimum level shipped to the collector

	ProfilingEnabled  bool
	ProfilingServer   string
	ProfilingUser     string
	ProfilingPassword string
	SpanProfiles      bool
}

// defaultTenantID is used when requests carry no X-Tenant-ID header
var defaultTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with STORE_ prefix (e.g., STORE_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return fromViper(v)
}

// fromViper builds, defaults and validates a Config from v
func fromViper(v *viper.Viper) (*Config, error) {
	// Enable environment variable override
	v.SetEnvPrefix("STORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Storage: StorageConfig{
			Type:              v.GetString("storage.type"),
			LocalPath:         v.GetString("storage.local_path"),
			BaseURL:           v.GetString("storage.base_url"),
			Bucket:            v.GetString("storage.bucket"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
			Retention:         v.GetDuration("storage.retention"),
		},
		Chrome: ChromeConfig{
			RemoteURL:      v.GetString("chrome.remote_url"),
			NoSandbox:      v.GetBool("chrome.no_sandbox"),
			Timeout:        v.GetDuration("chrome.timeout"),
			ViewportWidth:  v.GetInt("chrome.viewport_width"),
			ViewportHeight: v.GetInt("chrome.viewport_height"),
		},
		Export: ExportConfig{
			Scale:            v.GetFloat64("export.scale"),
			Padding:          v.GetInt("export.padding"),
			WhiteThreshold:   v.GetInt("export.white_threshold"),
			SampleStep:       v.GetInt("export.sample_step"),
			Background:       v.GetString("export.background"),
			ReadinessTimeout: v.GetDuration("export.readiness_timeout"),
			CacheEnabled:     v.GetBool("export.cache_enabled"),
			CacheTTL:         v.GetDuration("export.cache_ttl"),
			CurrencySymbol:   v.GetString("export.currency_symbol"),
			MaxHTMLBytes:     v.GetInt("export.max_html_bytes"),

			MaxPixels:            v.GetInt("export.max_pixels"),
			MaxConcurrentRenders: v.GetInt("export.max_concurrent_renders"),
			RenderRateLimit:      v.GetInt("export.render_rate_limit"),
			RenderRateWindow:     v.GetDuration("export.render_rate_window"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTracing:         v.GetBool("telemetry.db_tracing"),
			DBSlowQuery:       v.GetDuration("telemetry.db_slow_query"),
			ExportLogs:        v.GetBool("telemetry.export_logs"),
			LogLevel:          v.GetString("telemetry.log_level"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingServer:   v.GetString("telemetry.profiling_server"),
			ProfilingUser:     v.GetString("telemetry.profiling_user"),
			ProfilingPassword: v.GetString("telemetry.profiling_password"),
			SpanProfiles:      v.GetBool("telemetry.span_profiles"),
		},
	}

	if raw := v.GetString("export.default_tenant_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("export.default_tenant_id is not a valid UUID: %w", err)
		}
		cfg.Export.DefaultTenantID = id
	}

	// Keys that must distinguish "unset" from zero
	if !v.IsSet("export.padding") {
		cfg.Export.Padding = -1
	}
	if !v.IsSet("export.white_threshold") {
		cfg.Export.WhiteThreshold = -1
	}
	if !v.IsSet("telemetry.sampling_ratio") {
		cfg.Telemetry.SamplingRatio = -1
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storefront-export"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "storefront"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "storefront.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// Exports hold the connection while Chrome renders
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 4 << 20 // 4MB
	}
	// An empty origin list means no cross-origin requests are allowed
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "X-Request-ID", "X-Tenant-ID", "X-User-ID"}
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data/exports"
	}
	if cfg.Storage.BaseURL == "" {
		cfg.Storage.BaseURL = "/artifacts"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
	if cfg.Chrome.Timeout == 0 {
		cfg.Chrome.Timeout = 30 * time.Second
	}
	if cfg.Chrome.ViewportWidth == 0 {
		cfg.Chrome.ViewportWidth = 1280
	}
	if cfg.Chrome.ViewportHeight == 0 {
		cfg.Chrome.ViewportHeight = 800
	}
	if cfg.Export.Scale == 0 {
		cfg.Export.Scale = 2.0
	}
	if cfg.Export.Padding == -1 {
		cfg.Export.Padding = 12
	}
	if cfg.Export.WhiteThreshold == -1 {
		cfg.Export.WhiteThreshold = 250
	}
	if cfg.Export.SampleStep == 0 {
		cfg.Export.SampleStep = 2
	}
	if cfg.Export.Background == "" {
		cfg.Export.Background = "#ffffff"
	}
	if cfg.Export.ReadinessTimeout == 0 {
		cfg.Export.ReadinessTimeout = 3 * time.Second
	}
	if cfg.Export.CacheTTL == 0 {
		cfg.Export.CacheTTL = 24 * time.Hour
	}
	if cfg.Export.CurrencySymbol == "" {
		cfg.Export.CurrencySymbol = "$"
	}
	if cfg.Export.MaxHTMLBytes == 0 {
		cfg.Export.MaxHTMLBytes = 1 << 20 // 1MB
	}
	if cfg.Export.MaxConcurrentRenders == 0 {
		cfg.Export.MaxConcurrentRenders = 4
	}
	if cfg.Export.RenderRateWindow == 0 {
		cfg.Export.RenderRateWindow = time.Minute
	}
	if cfg.Export.DefaultTenantID == uuid.Nil {
		cfg.Export.DefaultTenantID = defaultTenantID
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == -1 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQuery == 0 {
		cfg.Telemetry.DBSlowQuery = 200 * time.Millisecond
	}
	if cfg.Telemetry.LogLevel == "" {
		cfg.Telemetry.LogLevel = "info"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be 'postgres' or 'sqlite', got %q", c.Database.Driver)
	}

	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Storage.Type {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required when storage.type is s3")
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return fmt.Errorf("storage.access_key and storage.secret_key are required when storage.type is s3")
		}
	default:
		return fmt.Errorf("storage.type must be 'local' or 's3', got %q", c.Storage.Type)
	}
	if c.Storage.Retention < 0 {
		return fmt.Errorf("storage.retention cannot be negative")
	}

	if err := c.Export.validate(); err != nil {
		return err
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1, got %v", c.Telemetry.SamplingRatio)
	}
	if c.Telemetry.ProfilingEnabled && c.Telemetry.ProfilingServer == "" {
		return fmt.Errorf("telemetry.profiling_server is required when profiling is enabled")
	}
	if c.Export.CacheEnabled && c.Export.CacheTTL < 0 {
		return fmt.Errorf("export.cache_ttl cannot be negative")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Driver == "sqlite" {
			return fmt.Errorf("database.driver cannot be 'sqlite' in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	return nil
}

// validate checks the export defaults against the engine's accepted ranges
func (e *ExportConfig) validate() error {
	if e.Scale <= 0 || math.IsNaN(e.Scale) || math.IsInf(e.Scale, 0) {
		return fmt.Errorf("export.scale must be a positive number, got %v", e.Scale)
	}
	if e.Padding < 0 {
		return fmt.Errorf("export.padding cannot be negative, got %d", e.Padding)
	}
	if e.WhiteThreshold < 0 || e.WhiteThreshold > 255 {
		return fmt.Errorf("export.white_threshold must be between 0 and 255, got %d", e.WhiteThreshold)
	}
	if e.SampleStep < 1 {
		return fmt.Errorf("export.sample_step must be at least 1, got %d", e.SampleStep)
	}
	if e.ReadinessTimeout < 0 {
		return fmt.Errorf("export.readiness_timeout cannot be negative")
	}
	if e.MaxConcurrentRenders < 0 {
		return fmt.Errorf("export.max_concurrent_renders cannot be negative")
	}
	if e.RenderRateLimit < 0 {
		return fmt.Errorf("export.render_rate_limit cannot be negative")
	}
	if e.MaxPixels < 0 {
		return fmt.Errorf("export.max_pixels cannot be negative")
	}
	if e.RenderRateWindow < 0 {
		return fmt.Errorf("export.render_rate_window cannot be negative")
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
