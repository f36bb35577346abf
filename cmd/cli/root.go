// Package cli provides the Cobra command tree of the portward port scanner:
// the API server, in-process scans, a client for a running server and
// access to stored scan sessions.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/portward/internal/config"
	"github.com/anstrom/portward/internal/logging"
)

const (
	defaultConfigFile = "config.yaml"
	envPrefix         = "PORTWARD"
)

var (
	cfgFile string
	envFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "portward",
	Short: "TCP port scanner and scan service",
	Long: `portward scans a range of TCP ports on one target with bounded concurrency.
It runs scans in-process from the command line or as jobs behind a REST API
with live progress over WebSocket, and records results as sessions in PostgreSQL.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Variables already in the environment win over the dotenv file.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", envFile, err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	initLogging()
}

// getConfigFilePath returns the config file selected by --config, or the
// default in the working directory.
func getConfigFilePath() string {
	if file := viper.ConfigFileUsed(); file != "" {
		return file
	}
	return defaultConfigFile
}

// overridableKeys are the settings that can also come from PORTWARD_*
// variables or bound flags, e.g. PORTWARD_DATABASE_PASSWORD.
var overridableKeys = []string{
	"server.listen_addr",
	"server.port",
	"database.host",
	"database.port",
	"database.database",
	"database.username",
	"database.password",
	"database.ssl_mode",
	"scanning.dns_server",
	"events.redis_addr",
	"events.redis_password",
	"logging.level",
	"logging.format",
}

// loadConfig loads the config file, applies environment and flag
// overrides and validates the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigFilePath())
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	applyOverrides(cfg, viper.GetViper())

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, v *viper.Viper) {
	for _, key := range overridableKeys {
		if !v.IsSet(key) {
			continue
		}
		switch key {
		case "server.listen_addr":
			cfg.Server.ListenAddr = v.GetString(key)
		case "server.port":
			cfg.Server.Port = v.GetInt(key)
		case "database.host":
			cfg.Database.Host = v.GetString(key)
		case "database.port":
			cfg.Database.Port = v.GetInt(key)
		case "database.database":
			cfg.Database.Database = v.GetString(key)
		case "database.username":
			cfg.Database.Username = v.GetString(key)
		case "database.password":
			cfg.Database.Password = v.GetString(key)
		case "database.ssl_mode":
			cfg.Database.SSLMode = v.GetString(key)
		case "scanning.dns_server":
			cfg.Scanning.DNSServer = v.GetString(key)
		case "events.redis_addr":
			cfg.Events.RedisAddr = v.GetString(key)
		case "events.redis_password":
			cfg.Events.RedisPassword = v.GetString(key)
		case "logging.level":
			cfg.Logging.Level = logging.LogLevel(v.GetString(key))
		case "logging.format":
			cfg.Logging.Format = logging.LogFormat(v.GetString(key))
		}
	}
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	cfg, err := config.Load(getConfigFilePath())
	if err != nil {
		logging.SetDefault(logging.NewDefault())
		return
	}
	applyOverrides(cfg, viper.GetViper())

	logConfig := cfg.Logging
	if verbose {
		logConfig.Level = logging.LevelDebug
	}

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)

	if verbose {
		logging.Debug("Structured logging initialized", "level", logConfig.Level, "format", logConfig.Format)
	}
}
