package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Log          LogConfig
	Detection    DetectionConfig
	Reconcile    ReconcileConfig
	Propagation  PropagationConfig
	EventLog     EventLogConfig
	Scheduler    SchedulerConfig
	HTTP         HTTPConfig
	Marketplaces MarketplacesConfig
	Telemetry    TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file path
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

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DetectionConfig holds change detection settings
type DetectionConfig struct {
	FetchTimeout  time.Duration
	OrderLookback time.Duration
}

// ReconcileConfig holds reconciliation settings
type ReconcileConfig struct {
	MirrorNewListings bool
}

// PropagationConfig holds outbound write settings
type PropagationConfig struct {
	QueueSize      int
	SuppressTTL    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// EventLogConfig holds sync event retention settings
type EventLogConfig struct {
	PurgeEnabled   bool
	PurgeRetention time.Duration
}

// SchedulerConfig holds sync cycle scheduler configuration
type SchedulerConfig struct {
	Enabled      bool
	SyncInterval time.Duration
	JobTimeout   time.Duration
	HistorySize  int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// MarketplaceConfig holds per-marketplace adapter credentials
type MarketplaceConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Secret  string
	ShopID  string
	Timeout time.Duration
}

// MarketplacesConfig holds configuration for every supported marketplace
type MarketplacesConfig struct {
	Ebay     MarketplaceConfig
	Etsy     MarketplaceConfig
	Mercari  MarketplaceConfig
	Poshmark MarketplaceConfig
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CSYNC_ prefix (e.g., CSYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("CSYNC")
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
			Path:            v.GetString("database.path"),
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
		Detection: DetectionConfig{
			FetchTimeout:  v.GetDuration("detection.fetch_timeout"),
			OrderLookback: v.GetDuration("detection.order_lookback"),
		},
		Reconcile: ReconcileConfig{
			MirrorNewListings: v.GetBool("reconcile.mirror_new_listings"),
		},
		Propagation: PropagationConfig{
			QueueSize:      v.GetInt("propagation.queue_size"),
			SuppressTTL:    v.GetDuration("propagation.suppress_ttl"),
			MaxAttempts:    v.GetInt("propagation.max_attempts"),
			InitialBackoff: v.GetDuration("propagation.initial_backoff"),
			MaxBackoff:     v.GetDuration("propagation.max_backoff"),
		},
		EventLog: EventLogConfig{
			PurgeEnabled:   v.GetBool("event_log.purge_enabled"),
			PurgeRetention: v.GetDuration("event_log.purge_retention"),
		},
		Scheduler: SchedulerConfig{
			Enabled:      v.GetBool("scheduler.enabled"),
			SyncInterval: v.GetDuration("scheduler.sync_interval"),
			JobTimeout:   v.GetDuration("scheduler.job_timeout"),
			HistorySize:  v.GetInt("scheduler.history_size"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Marketplaces: MarketplacesConfig{
			Ebay:     marketplaceConfig(v, "ebay"),
			Etsy:     marketplaceConfig(v, "etsy"),
			Mercari:  marketplaceConfig(v, "mercari"),
			Poshmark: marketplaceConfig(v, "poshmark"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// marketplaceConfig reads one marketplace section by name
func marketplaceConfig(v *viper.Viper, name string) MarketplaceConfig {
	return MarketplaceConfig{
		Enabled: v.GetBool("marketplaces." + name + ".enabled"),
		BaseURL: v.GetString("marketplaces." + name + ".base_url"),
		APIKey:  v.GetString("marketplaces." + name + ".api_key"),
		Secret:  v.GetString("marketplaces." + name + ".secret"),
		ShopID:  v.GetString("marketplaces." + name + ".shop_id"),
		Timeout: v.GetDuration("marketplaces." + name + ".timeout"),
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "channelsync"
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
		cfg.Database.DBName = "channelsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "channelsync.db"
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
	if cfg.Detection.FetchTimeout == 0 {
		cfg.Detection.FetchTimeout = 60 * time.Second
	}
	if cfg.Detection.OrderLookback == 0 {
		cfg.Detection.OrderLookback = 24 * time.Hour
	}
	if cfg.Propagation.QueueSize == 0 {
		cfg.Propagation.QueueSize = 64
	}
	if cfg.Propagation.SuppressTTL == 0 {
		cfg.Propagation.SuppressTTL = 5 * time.Minute
	}
	if cfg.Propagation.MaxAttempts == 0 {
		cfg.Propagation.MaxAttempts = 4
	}
	if cfg.Propagation.InitialBackoff == 0 {
		cfg.Propagation.InitialBackoff = 2 * time.Second
	}
	if cfg.Propagation.MaxBackoff == 0 {
		cfg.Propagation.MaxBackoff = 60 * time.Second
	}
	if cfg.EventLog.PurgeRetention == 0 {
		cfg.EventLog.PurgeRetention = 30 * 24 * time.Hour
	}
	if cfg.Scheduler.SyncInterval == 0 {
		cfg.Scheduler.SyncInterval = 5 * time.Minute
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 10 * time.Minute
	}
	if cfg.Scheduler.HistorySize == 0 {
		cfg.Scheduler.HistorySize = 50
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	for _, mc := range []*MarketplaceConfig{
		&cfg.Marketplaces.Ebay,
		&cfg.Marketplaces.Etsy,
		&cfg.Marketplaces.Mercari,
		&cfg.Marketplaces.Poshmark,
	} {
		if mc.Timeout == 0 {
			mc.Timeout = 30 * time.Second
		}
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "channelsync"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}

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

	if c.Propagation.MaxAttempts < 1 {
		return fmt.Errorf("propagation.max_attempts must be at least 1")
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "postgres" {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
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
