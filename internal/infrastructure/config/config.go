package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Log          LogConfig
	HTTP         HTTPConfig
	Preview      PreviewConfig
	Renderer     RendererConfig
	SharedMemory SharedMemoryConfig
	Storage      StorageConfig
	Redis        RedisConfig
	Telemetry    TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
}

// PreviewConfig bounds the print request bookkeeping
type PreviewConfig struct {
	MaxPending        int           // 0 = unbounded
	RequestTTL        time.Duration // 0 = requests never expire
	SweepInterval     time.Duration
	BackgroundWorkers int
	PrimaryQueueSize  int
	PipeBufferSize    int
}

// RendererConfig holds chromedp settings
type RendererConfig struct {
	RemoteURL  string
	Timeout    time.Duration
	Workers    int
	Headless   bool
	DisableGPU bool
	NoSandbox  bool
}

// SharedMemoryConfig selects where document regions are created
type SharedMemoryConfig struct {
	Dir string // empty = /dev/shm, falling back to the temp dir
}

// StorageConfig selects and configures PDF archiving
type StorageConfig struct {
	Type              string // fs or s3
	BasePath          string
	BaseURL           string
	RetentionDays     int
	Endpoint          string
	Region            string
	Bucket            string
	Prefix            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	PresignExpiration time.Duration
}

// RedisConfig holds Redis connection settings for request id allocation
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	Key      string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
}

// Load loads configuration from config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with PDFPREVIEW_ prefix (e.g., PDFPREVIEW_STORAGE_BUCKET)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path searches
// the default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pdfpreview")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("PDFPREVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Preview: PreviewConfig{
			MaxPending:        v.GetInt("preview.max_pending"),
			RequestTTL:        v.GetDuration("preview.request_ttl"),
			SweepInterval:     v.GetDuration("preview.sweep_interval"),
			BackgroundWorkers: v.GetInt("preview.background_workers"),
			PrimaryQueueSize:  v.GetInt("preview.primary_queue_size"),
			PipeBufferSize:    v.GetInt("preview.pipe_buffer_size"),
		},
		Renderer: RendererConfig{
			RemoteURL:  v.GetString("renderer.remote_url"),
			Timeout:    v.GetDuration("renderer.timeout"),
			Workers:    v.GetInt("renderer.workers"),
			Headless:   v.GetBool("renderer.headless"),
			DisableGPU: v.GetBool("renderer.disable_gpu"),
			NoSandbox:  v.GetBool("renderer.no_sandbox"),
		},
		SharedMemory: SharedMemoryConfig{
			Dir: v.GetString("shared_memory.dir"),
		},
		Storage: StorageConfig{
			Type:              v.GetString("storage.type"),
			BasePath:          v.GetString("storage.base_path"),
			BaseURL:           v.GetString("storage.base_url"),
			RetentionDays:     v.GetInt("storage.retention_days"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			Prefix:            v.GetString("storage.prefix"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Key:      v.GetString("redis.key"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers defaults for booleans, which cannot be told apart
// from an explicit false after loading.
func setDefaults(v *viper.Viper) {
	v.SetDefault("renderer.headless", true)
	v.SetDefault("renderer.disable_gpu", true)
	v.SetDefault("storage.use_path_style", true)
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "pdfpreview"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
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
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.Preview.SweepInterval == 0 {
		cfg.Preview.SweepInterval = time.Second
	}
	if cfg.Preview.BackgroundWorkers == 0 {
		cfg.Preview.BackgroundWorkers = 4
	}
	if cfg.Preview.PrimaryQueueSize == 0 {
		cfg.Preview.PrimaryQueueSize = 256
	}
	if cfg.Preview.PipeBufferSize == 0 {
		cfg.Preview.PipeBufferSize = 64
	}
	if cfg.Renderer.Timeout == 0 {
		cfg.Renderer.Timeout = 30 * time.Second
	}
	if cfg.Renderer.Workers == 0 {
		cfg.Renderer.Workers = 2
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "fs"
	}
	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "./data/prints"
	}
	if cfg.Storage.BaseURL == "" {
		cfg.Storage.BaseURL = "/api/v1/print/documents"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.Key == "" {
		cfg.Redis.Key = "pdfpreview:request_id"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Preview.MaxPending < 0 {
		return fmt.Errorf("preview.max_pending cannot be negative")
	}
	if c.Preview.RequestTTL < 0 {
		return fmt.Errorf("preview.request_ttl cannot be negative")
	}
	if c.Preview.BackgroundWorkers < 0 {
		return fmt.Errorf("preview.background_workers cannot be negative")
	}
	if c.Renderer.Workers < 0 {
		return fmt.Errorf("renderer.workers cannot be negative")
	}

	switch c.Storage.Type {
	case "fs":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required when storage.type is s3")
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return fmt.Errorf("storage.access_key and storage.secret_key are required when storage.type is s3")
		}
	default:
		return fmt.Errorf("storage.type must be fs or s3, got %q", c.Storage.Type)
	}

	if c.App.Env == "production" {
		if c.Renderer.NoSandbox && c.Renderer.RemoteURL == "" {
			return fmt.Errorf("renderer.no_sandbox must not be used with a local browser in production")
		}
		if c.Storage.Type == "s3" && !c.Storage.UseSSL {
			return fmt.Errorf("storage.use_ssl must be true in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	return nil
}

// RedisAddr returns host:port for the Redis connection
func (r *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
