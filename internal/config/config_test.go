package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portward/internal/logging"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1, cfg.Scanning.DefaultStartPort)
	assert.Equal(t, 1000, cfg.Scanning.DefaultEndPort)
	assert.Equal(t, time.Second, cfg.Scanning.DefaultTimeout)
	assert.Equal(t, 200, cfg.Scanning.DefaultConcurrency)
	assert.Equal(t, MaxConcurrencyLimit, cfg.Scanning.MaxConcurrency)
	assert.Equal(t, "@every 5m", cfg.Retention.Schedule)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention.SessionMaxAge)
	assert.Equal(t, "portward:jobs", cfg.Events.Channel)
	assert.False(t, cfg.HasDatabase())
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "valid yaml config",
			file: "config.yaml",
			content: `
server:
  port: 9090
database:
  host: db.internal
  database: portward
  username: scanner
scanning:
  default_timeout: 500ms
  default_concurrency: 50
  dns_server: 10.0.0.53:53
retention:
  job_ttl: 10m
logging:
  level: debug
  format: json
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, "db.internal", cfg.Database.Host)
				assert.True(t, cfg.HasDatabase())
				assert.Equal(t, 500*time.Millisecond, cfg.Scanning.DefaultTimeout)
				assert.Equal(t, 50, cfg.Scanning.DefaultConcurrency)
				assert.Equal(t, "10.0.0.53:53", cfg.Scanning.DNSServer)
				assert.Equal(t, 10*time.Minute, cfg.Retention.JobTTL)
				assert.Equal(t, logging.LevelDebug, cfg.Logging.Level)
				// Untouched sections keep their defaults.
				assert.Equal(t, 1000, cfg.Scanning.DefaultEndPort)
			},
		},
		{
			name:    "valid json config",
			file:    "config.json",
			content: `{"server": {"port": 8081}, "scanning": {"queue_size": 8}}`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8081, cfg.Server.Port)
				assert.Equal(t, 8, cfg.Scanning.QueueSize)
			},
		},
		{
			name:    "invalid yaml syntax",
			file:    "config.yaml",
			content: "server:\n  port: [unclosed",
			wantErr: true,
		},
		{
			name:    "wrong field type",
			file:    "config.yaml",
			content: "server:\n  port: invalid\n",
			wantErr: true,
		},
		{
			name:    "fails validation",
			file:    "config.yaml",
			content: "scanning:\n  default_start_port: 100\n  default_end_port: 10\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.file, tt.content))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}

	t.Run("nonexistent file returns defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server port"},
		{"empty listen addr", func(c *Config) { c.Server.ListenAddr = "" }, "listen address"},
		{"zero request size", func(c *Config) { c.Server.MaxRequestSize = 0 }, "max request size"},
		{"bad rate limit", func(c *Config) { c.Server.RateLimit.RequestsPerSecond = 0 }, "requests per second"},
		{"rate limit disabled", func(c *Config) {
			c.Server.RateLimit.Enabled = false
			c.Server.RateLimit.RequestsPerSecond = 0
		}, ""},
		{"end port too high", func(c *Config) { c.Scanning.DefaultEndPort = 70000 }, "port range"},
		{"zero timeout", func(c *Config) { c.Scanning.DefaultTimeout = 0 }, "timeout"},
		{"max concurrency above limit", func(c *Config) { c.Scanning.MaxConcurrency = 5000 }, "max concurrency"},
		{"default above max", func(c *Config) { c.Scanning.DefaultConcurrency = 2000 }, "default concurrency"},
		{"zero scans", func(c *Config) { c.Scanning.MaxConcurrentScans = 0 }, "max concurrent scans"},
		{"negative queue", func(c *Config) { c.Scanning.QueueSize = -1 }, "queue size"},
		{"negative probe rate", func(c *Config) { c.Scanning.ProbeRate = -1 }, "probe rate"},
		{"negative retries", func(c *Config) { c.Scanning.PersistRetries = -1 }, "persist retries"},
		{"dns server without port", func(c *Config) { c.Scanning.DNSServer = "8.8.8.8" }, "dns server"},
		{"database without user", func(c *Config) { c.Database.Database = "portward" }, "username"},
		{"database without host", func(c *Config) {
			c.Database.Database = "portward"
			c.Database.Username = "u"
			c.Database.Host = ""
		}, "database host"},
		{"bad schedule", func(c *Config) { c.Retention.Schedule = "every now and then" }, "retention schedule"},
		{"bad schedule ignored when disabled", func(c *Config) {
			c.Retention.Enabled = false
			c.Retention.Schedule = "nope"
		}, ""},
		{"zero job ttl", func(c *Config) { c.Retention.JobTTL = 0 }, "job ttl"},
		{"redis without channel", func(c *Config) {
			c.Events.RedisAddr = "localhost:6379"
			c.Events.Channel = ""
		}, "events channel"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "log level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "portward.yaml")

	cfg := Default()
	cfg.Server.Port = 9191
	cfg.Scanning.DefaultTimeout = 750 * time.Millisecond
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(configFilePerm), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, loaded.Server.Port)
	assert.Equal(t, 750*time.Millisecond, loaded.Scanning.DefaultTimeout)
}

func TestGetAPIAddress(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "127.0.0.1:8080", cfg.GetAPIAddress())

	cfg.Server.ListenAddr = "::1"
	assert.Equal(t, "[::1]:8080", cfg.GetAPIAddress())
}
