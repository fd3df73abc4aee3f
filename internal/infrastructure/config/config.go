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
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Usage     UsageConfig
	Billing   BillingConfig
	Storage   StorageConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
	// File rotation, used when Output is a path
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings.
// An empty Host disables Redis and in-memory fallbacks are used.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	IdleTimeout         time.Duration
	ShutdownTimeout     time.Duration
	MaxHeaderBytes      int
	MaxBodySize         int64
	IngestRateLimit     bool
	IngestRatePerSecond float64 // per client IP
	IngestBurst         int
	CORSAllowOrigins    []string
	CORSAllowMethods    []string
	CORSAllowHeaders    []string
	TrustedProxies      []string
}

// UsageConfig holds windowing and ingestion settings
type UsageConfig struct {
	WindowSize       time.Duration
	GracePeriod      time.Duration
	MaxClockSkew     time.Duration
	DedupeTTL        time.Duration
	EventRetention   time.Duration
	MaxBatchSize     int
	SchedulerEnabled bool
	CloseInterval    time.Duration
	PurgeInterval    time.Duration
	RunTimeout       time.Duration
}

// BillingConfig holds bill generation settings
type BillingConfig struct {
	LockTTL  time.Duration
	LockWait time.Duration
}

// StorageConfig holds artifact storage settings
type StorageConfig struct {
	Driver            string // s3 or local
	LocalPath         string
	Endpoint          string
	Bucket            string
	AccessKey         string
	SecretKey         string
	Region            string
	UseSSL            bool
	UsePathStyle      bool
	PresignExpiration time.Duration
	MaxUploadSize     int64
}

// KafkaConfig holds the optional usage event consumer settings
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	Topic        string
	GroupID      string
	MinBytes     int
	MaxBytes     int
	MaxWait      time.Duration
	RetryBackoff time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry tracing
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
	// Continuous profiling (Pyroscope)
	ProfilingEnabled     bool
	ProfilingAddress     string
	ProfilingAllocations bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with FAASBILL_ prefix (e.g., FAASBILL_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("FAASBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Output:     v.GetString("log.output"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
			Compress:   v.GetBool("log.compress"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:         v.GetDuration("http.read_timeout"),
			WriteTimeout:        v.GetDuration("http.write_timeout"),
			IdleTimeout:         v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:     v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:      v.GetInt("http.max_header_bytes"),
			MaxBodySize:         v.GetInt64("http.max_body_size"),
			IngestRateLimit:     v.GetBool("http.ingest_rate_limit"),
			IngestRatePerSecond: v.GetFloat64("http.ingest_rate_per_second"),
			IngestBurst:         v.GetInt("http.ingest_burst"),
			CORSAllowOrigins:    v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:    v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:    v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:      v.GetStringSlice("http.trusted_proxies"),
		},
		Usage: UsageConfig{
			WindowSize:       v.GetDuration("usage.window_size"),
			GracePeriod:      v.GetDuration("usage.grace_period"),
			MaxClockSkew:     v.GetDuration("usage.max_clock_skew"),
			DedupeTTL:        v.GetDuration("usage.dedupe_ttl"),
			EventRetention:   v.GetDuration("usage.event_retention"),
			MaxBatchSize:     v.GetInt("usage.max_batch_size"),
			SchedulerEnabled: !v.IsSet("usage.scheduler_enabled") || v.GetBool("usage.scheduler_enabled"),
			CloseInterval:    v.GetDuration("usage.close_interval"),
			PurgeInterval:    v.GetDuration("usage.purge_interval"),
			RunTimeout:       v.GetDuration("usage.run_timeout"),
		},
		Billing: BillingConfig{
			LockTTL:  v.GetDuration("billing.lock_ttl"),
			LockWait: v.GetDuration("billing.lock_wait"),
		},
		Storage: StorageConfig{
			Driver:            v.GetString("storage.driver"),
			LocalPath:         v.GetString("storage.local_path"),
			Endpoint:          v.GetString("storage.endpoint"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			Region:            v.GetString("storage.region"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      !v.IsSet("storage.use_path_style") || v.GetBool("storage.use_path_style"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
			MaxUploadSize:     v.GetInt64("storage.max_upload_size"),
		},
		Kafka: KafkaConfig{
			Enabled:      v.GetBool("kafka.enabled"),
			Brokers:      v.GetStringSlice("kafka.brokers"),
			Topic:        v.GetString("kafka.topic"),
			GroupID:      v.GetString("kafka.group_id"),
			MinBytes:     v.GetInt("kafka.min_bytes"),
			MaxBytes:     v.GetInt("kafka.max_bytes"),
			MaxWait:      v.GetDuration("kafka.max_wait"),
			RetryBackoff: v.GetDuration("kafka.retry_backoff"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingEnabled:     v.GetBool("telemetry.profiling_enabled"),
			ProfilingAddress:     v.GetString("telemetry.profiling_address"),
			ProfilingAllocations: v.GetBool("telemetry.profiling_allocations"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "faasbill"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
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
		cfg.Database.DBName = "faasbill"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
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
	if cfg.Redis.Host != "" && cfg.Redis.Port == 0 {
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
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 7
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 30
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.HTTP.IngestRatePerSecond == 0 {
		cfg.HTTP.IngestRatePerSecond = 50
	}
	if cfg.HTTP.IngestBurst == 0 {
		cfg.HTTP.IngestBurst = 100
	}
	// An empty origin list rejects cross-origin requests until configured
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "X-Request-ID"}
	}
	if cfg.Usage.WindowSize == 0 {
		cfg.Usage.WindowSize = time.Hour
	}
	if cfg.Usage.GracePeriod == 0 {
		cfg.Usage.GracePeriod = 5 * time.Minute
	}
	if cfg.Usage.MaxClockSkew == 0 {
		cfg.Usage.MaxClockSkew = 5 * time.Minute
	}
	if cfg.Usage.DedupeTTL == 0 {
		cfg.Usage.DedupeTTL = 24 * time.Hour
	}
	if cfg.Usage.EventRetention == 0 {
		cfg.Usage.EventRetention = 30 * 24 * time.Hour
	}
	if cfg.Usage.MaxBatchSize == 0 {
		cfg.Usage.MaxBatchSize = 1000
	}
	if cfg.Usage.CloseInterval == 0 {
		cfg.Usage.CloseInterval = time.Minute
	}
	if cfg.Usage.PurgeInterval == 0 {
		cfg.Usage.PurgeInterval = time.Hour
	}
	if cfg.Usage.RunTimeout == 0 {
		cfg.Usage.RunTimeout = 30 * time.Second
	}
	if cfg.Billing.LockTTL == 0 {
		cfg.Billing.LockTTL = 30 * time.Second
	}
	if cfg.Billing.LockWait == 0 {
		cfg.Billing.LockWait = 10 * time.Second
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "local"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data/artifacts"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "faasbill-artifacts"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
	if cfg.Storage.MaxUploadSize == 0 {
		cfg.Storage.MaxUploadSize = 100 << 20 // 100MB
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "faas.usage-events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "faasbill-ingest"
	}
	if cfg.Kafka.MinBytes == 0 {
		cfg.Kafka.MinBytes = 1
	}
	if cfg.Kafka.MaxBytes == 0 {
		cfg.Kafka.MaxBytes = 10 << 20
	}
	if cfg.Kafka.MaxWait == 0 {
		cfg.Kafka.MaxWait = 500 * time.Millisecond
	}
	if cfg.Kafka.RetryBackoff == 0 {
		cfg.Kafka.RetryBackoff = 2 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "faasbill"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.ProfilingAddress == "" {
		cfg.Telemetry.ProfilingAddress = "http://localhost:4040"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
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

	if c.Usage.WindowSize < time.Minute || (24*time.Hour)%c.Usage.WindowSize != 0 {
		return fmt.Errorf("usage.window_size must be at least 1m and divide 24h evenly, got %s", c.Usage.WindowSize)
	}
	if c.Usage.GracePeriod < 0 {
		return fmt.Errorf("usage.grace_period cannot be negative")
	}
	if c.Usage.EventRetention <= c.Usage.WindowSize+c.Usage.GracePeriod {
		return fmt.Errorf("usage.event_retention must exceed window_size + grace_period")
	}

	switch c.Storage.Driver {
	case "local", "s3":
	default:
		return fmt.Errorf("storage.driver must be 'local' or 's3', got %q", c.Storage.Driver)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka.enabled is true")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
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
