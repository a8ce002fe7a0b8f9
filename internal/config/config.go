package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	MinMB             uint64 `mapstructure:"min_mb"`
	MaxMB             uint64 `mapstructure:"max_mb"`
	Allocator         string `mapstructure:"allocator"` // "os", "heap" or empty for the platform default
	LogLevel          string `mapstructure:"log_level"`
	RecordFile        string `mapstructure:"record_file"`         // JSON-lines attempt record, disabled when empty
	AddressSpaceLimit string `mapstructure:"address_space_limit"` // e.g., "2G", disabled when empty
}

// LoadConfig loads configuration from file and environment variables.
// configFile overrides the default ~/.memlimit/config.yaml lookup when set.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("min_mb", 0)
	v.SetDefault("max_mb", 4096)
	v.SetDefault("allocator", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("record_file", "")
	v.SetDefault("address_space_limit", "")

	if configFile != "" {
		v.SetConfigFile(expandPath(configFile))
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(getHomeDir(), ".memlimit"))

		// Read config file (ignore error if file doesn't exist)
		_ = v.ReadInConfig() // nolint:errcheck // config file is optional
	}

	// Override with environment variables
	v.SetEnvPrefix("MEMLIMIT")
	v.AutomaticEnv()

	_ = v.BindEnv("min_mb", "MEMLIMIT_MIN_MB")       // nolint:errcheck // errors are unlikely here
	_ = v.BindEnv("max_mb", "MEMLIMIT_MAX_MB")       // nolint:errcheck // errors are unlikely here
	_ = v.BindEnv("allocator", "MEMLIMIT_ALLOCATOR") // nolint:errcheck // errors are unlikely here
	_ = v.BindEnv("log_level", "MEMLIMIT_LOG_LEVEL") // nolint:errcheck // errors are unlikely here

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Expand ~ in paths
	cfg.RecordFile = expandPath(cfg.RecordFile)

	return &cfg, nil
}

// getHomeDir returns the user's home directory
func getHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home := getHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
