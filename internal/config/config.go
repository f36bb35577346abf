package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/portward/internal/db"
	"github.com/anstrom/portward/internal/logging"
)

const (
	// Hard ceiling for probes in flight for a single job.
	MaxConcurrencyLimit = 1000

	configDirPerm  = 0o750
	configFilePerm = 0o600
)

// Config represents the complete portward configuration
type Config struct {
	// HTTP API server configuration
	Server ServerConfig `yaml:"server" json:"server"`

	// Database configuration
	Database db.Config `yaml:"database" json:"database"`

	// Scan engine configuration
	Scanning ScanningConfig `yaml:"scanning" json:"scanning"`

	// Retention of finished jobs and stored sessions
	Retention RetentionConfig `yaml:"retention" json:"retention"`

	// Event fan-out configuration
	Events EventsConfig `yaml:"events" json:"events"`

	// Logging configuration
	Logging logging.Config `yaml:"logging" json:"logging"`
}

// ServerConfig holds API server settings
type ServerConfig struct {
	// Listen address
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`

	// Listen port
	Port int `yaml:"port" json:"port"`

	// Timeouts applied to the HTTP server
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Maximum request body size in bytes
	MaxRequestSize int64 `yaml:"max_request_size" json:"max_request_size"`

	// CORS settings
	CORS CORSConfig `yaml:"cors" json:"cors"`

	// Per-client request rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Take the client address from X-Forwarded-For when behind a proxy
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" json:"trust_proxy_headers"`
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Enable rate limiting
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Requests per second per client IP
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`

	// Burst size
	BurstSize int `yaml:"burst_size" json:"burst_size"`
}

// ScanningConfig holds scan engine settings
type ScanningConfig struct {
	// Port range used when a request omits it
	DefaultStartPort int `yaml:"default_start_port" json:"default_start_port"`
	DefaultEndPort   int `yaml:"default_end_port" json:"default_end_port"`

	// Per-probe timeout used when a request omits it
	DefaultTimeout time.Duration `yaml:"default_timeout" json:"default_timeout"`

	// Probes in flight per job when a request omits it
	DefaultConcurrency int `yaml:"default_concurrency" json:"default_concurrency"`

	// Upper bound for a requested concurrency, never above MaxConcurrencyLimit
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`

	// Scan jobs executed at the same time
	MaxConcurrentScans int `yaml:"max_concurrent_scans" json:"max_concurrent_scans"`

	// Accepted jobs waiting for a free slot
	QueueSize int `yaml:"queue_size" json:"queue_size"`

	// Probe dispatches per second for one job, 0 disables pacing
	ProbeRate float64 `yaml:"probe_rate" json:"probe_rate"`

	// DNS server (host:port) used to resolve targets, empty uses the system resolver
	DNSServer string `yaml:"dns_server" json:"dns_server"`

	// Persistence retry policy
	PersistRetries    int           `yaml:"persist_retries" json:"persist_retries"`
	PersistRetryDelay time.Duration `yaml:"persist_retry_delay" json:"persist_retry_delay"`
}

// RetentionConfig holds cleanup settings
type RetentionConfig struct {
	// Enable the retention janitor
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Cron expression or @every descriptor
	Schedule string `yaml:"schedule" json:"schedule"`

	// Terminal jobs are evicted from memory after this long
	JobTTL time.Duration `yaml:"job_ttl" json:"job_ttl"`

	// Stored sessions older than this are deleted, 0 keeps them forever
	SessionMaxAge time.Duration `yaml:"session_max_age" json:"session_max_age"`
}

// EventsConfig holds event publishing settings
type EventsConfig struct {
	// Redis address (host:port), empty disables the Redis publisher
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password" json:"redis_password"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`

	// Pub/sub channel for job events
	Channel string `yaml:"channel" json:"channel"`

	// Lifetime of the last job snapshot kept in Redis
	SnapshotTTL time.Duration `yaml:"snapshot_ttl" json:"snapshot_ttl"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      "127.0.0.1",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxRequestSize:  1024 * 1024,
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerSecond: 20,
				BurstSize:         40,
			},
		},
		Database: db.DefaultConfig(),
		Scanning: ScanningConfig{
			DefaultStartPort:   1,
			DefaultEndPort:     1000,
			DefaultTimeout:     time.Second,
			DefaultConcurrency: 200,
			MaxConcurrency:     MaxConcurrencyLimit,
			MaxConcurrentScans: 4,
			QueueSize:          64,
			ProbeRate:          0,
			DNSServer:          "",
			PersistRetries:     3,
			PersistRetryDelay:  2 * time.Second,
		},
		Retention: RetentionConfig{
			Enabled:       true,
			Schedule:      "@every 5m",
			JobTTL:        30 * time.Minute,
			SessionMaxAge: 30 * 24 * time.Hour,
		},
		Events: EventsConfig{
			Channel:     "portward:jobs",
			SnapshotTTL: time.Hour,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// JSON is a subset of YAML, so one decoder covers both extensions.
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(path), err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), configDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, configFilePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateScanning(); err != nil {
		return err
	}

	// The database is optional; once named it must be complete.
	if c.Database.Database != "" {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	}

	if c.Retention.Enabled {
		if _, err := cron.ParseStandard(c.Retention.Schedule); err != nil {
			return fmt.Errorf("invalid retention schedule %q: %w", c.Retention.Schedule, err)
		}
		if c.Retention.JobTTL <= 0 {
			return fmt.Errorf("retention job ttl must be positive")
		}
		if c.Retention.SessionMaxAge < 0 {
			return fmt.Errorf("retention session max age cannot be negative")
		}
	}

	if c.Events.RedisAddr != "" && c.Events.Channel == "" {
		return fmt.Errorf("events channel is required when redis is enabled")
	}

	switch c.Logging.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server listen address is required")
	}
	if c.Server.MaxRequestSize <= 0 {
		return fmt.Errorf("server max request size must be positive")
	}
	if c.Server.RateLimit.Enabled {
		if c.Server.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate limit requests per second must be positive")
		}
		if c.Server.RateLimit.BurstSize <= 0 {
			return fmt.Errorf("rate limit burst size must be positive")
		}
	}
	return nil
}

func (c *Config) validateScanning() error {
	s := c.Scanning
	if s.DefaultStartPort < 1 || s.DefaultEndPort > 65535 || s.DefaultStartPort > s.DefaultEndPort {
		return fmt.Errorf("default port range %d-%d is invalid", s.DefaultStartPort, s.DefaultEndPort)
	}
	if s.DefaultTimeout <= 0 {
		return fmt.Errorf("default probe timeout must be positive")
	}
	if s.MaxConcurrency <= 0 || s.MaxConcurrency > MaxConcurrencyLimit {
		return fmt.Errorf("max concurrency must be between 1 and %d", MaxConcurrencyLimit)
	}
	if s.DefaultConcurrency <= 0 || s.DefaultConcurrency > s.MaxConcurrency {
		return fmt.Errorf("default concurrency must be between 1 and %d", s.MaxConcurrency)
	}
	if s.MaxConcurrentScans <= 0 {
		return fmt.Errorf("max concurrent scans must be positive")
	}
	if s.QueueSize < 0 {
		return fmt.Errorf("queue size cannot be negative")
	}
	if s.ProbeRate < 0 {
		return fmt.Errorf("probe rate cannot be negative")
	}
	if s.PersistRetries < 0 {
		return fmt.Errorf("persist retries cannot be negative")
	}
	if s.DNSServer != "" {
		if _, _, err := net.SplitHostPort(s.DNSServer); err != nil {
			return fmt.Errorf("dns server must be host:port: %w", err)
		}
	}
	return nil
}

// HasDatabase reports whether a database is configured.
func (c *Config) HasDatabase() bool {
	return c.Database.Database != ""
}

// GetAPIAddress returns the full API address
func (c *Config) GetAPIAddress() string {
	return net.JoinHostPort(c.Server.ListenAddr, strconv.Itoa(c.Server.Port))
}
