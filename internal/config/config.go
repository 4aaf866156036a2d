package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Library  LibraryConfig  `mapstructure:"library"`
	Tautulli ProviderConfig `mapstructure:"tautulli"`
	Jellyfin JellyfinConfig `mapstructure:"jellyfin"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Polling  PollingConfig  `mapstructure:"polling"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// LibraryConfig holds connection settings for the library manager
// (a Sonarr-compatible API).
type LibraryConfig struct {
	URL            string `mapstructure:"url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ProviderConfig holds connection settings for a playback-history provider.
type ProviderConfig struct {
	URL            string `mapstructure:"url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// JellyfinConfig holds connection settings for a Jellyfin-compatible server.
// User may be a username or a user GUID; usernames are resolved at startup.
type JellyfinConfig struct {
	URL            string `mapstructure:"url"`
	APIKey         string `mapstructure:"api_key"`
	User           string `mapstructure:"user"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// MetadataConfig holds settings for the alternate-title metadata lookup.
type MetadataConfig struct {
	TMDBAPIKey string `mapstructure:"tmdb_api_key"`
}

// PollingConfig holds active session polling settings.
type PollingConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	TriggerPercent  float64 `mapstructure:"trigger_percent"`
	IntervalMinutes int     `mapstructure:"interval_minutes"`
}

// CleanupConfig holds sweep scheduling settings.
type CleanupConfig struct {
	RunOnStart bool `mapstructure:"run_on_start"`
}

// Configured reports whether the provider has both URL and API key set.
func (p *ProviderConfig) Configured() bool {
	return p.URL != "" && p.APIKey != ""
}

// Configured reports whether the Jellyfin connection is fully set.
func (j *JellyfinConfig) Configured() bool {
	return j.URL != "" && j.APIKey != "" && j.User != ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8989,
		},
		Database: DatabaseConfig{
			Path: "./data/showkeeper.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Polling: PollingConfig{
			Enabled:         true,
			TriggerPercent:  50.0,
			IntervalMinutes: 15,
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.showkeeper")
	}

	v.SetEnvPrefix("SHOWKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Library.URL == "" {
		return nil, fmt.Errorf("library.url is required")
	}
	if cfg.Library.APIKey == "" {
		return nil, fmt.Errorf("library.api_key is required")
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8989)

	v.SetDefault("database.path", "./data/showkeeper.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")

	v.SetDefault("library.timeout_seconds", 10)
	v.SetDefault("tautulli.timeout_seconds", 10)
	v.SetDefault("jellyfin.timeout_seconds", 10)

	v.SetDefault("polling.enabled", true)
	v.SetDefault("polling.trigger_percent", 50.0)
	v.SetDefault("polling.interval_minutes", 15)

	v.SetDefault("cleanup.run_on_start", false)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
