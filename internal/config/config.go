package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// XDG helpers
func getConfigBaseDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, ConfigDirName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", ConfigDirName)
}

func getConfigPath(filename string) string {
	return filepath.Join(getConfigBaseDir(), filename)
}

// RegistryPath returns the default location of the persisted device registry.
func RegistryPath() string {
	return getConfigPath(RegistryFilename)
}

// Config represents the application configuration
type Config struct {
	API       APIConfig
	Discovery DiscoveryConfig
	Device    DeviceConfig
	Updates   UpdatesConfig
	Logging   LoggingConfig

	// RegistryFile is the path of the persisted device registry
	RegistryFile string

	// Internal viper instance
	v *viper.Viper
}

// APIConfig represents the HTTP API configuration
type APIConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
}

// DiscoveryConfig represents the mDNS discovery configuration
type DiscoveryConfig struct {
	Enabled         bool
	IntervalSeconds int `mapstructure:"interval"` // seconds between mDNS scans
}

// DeviceConfig represents per-device connection tuning
type DeviceConfig struct {
	InfoTimeoutSeconds  int `mapstructure:"info_timeout"`   // first-contact fetch timeout in seconds
	ReconnectBaseMillis int `mapstructure:"reconnect_base"` // initial backoff in milliseconds
	ReconnectCapSeconds int `mapstructure:"reconnect_cap"`  // backoff ceiling in seconds
}

// UpdatesConfig represents release catalog configuration
type UpdatesConfig struct {
	Repository      string `mapstructure:"repository"`       // owner/name of the firmware release repo
	IntervalMinutes int    `mapstructure:"interval_minutes"` // catalog refresh interval
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from a file and environment variables
func Load(configName, configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")

	// Set default values
	v.SetDefault("api.listen_address", DefaultAPIListenAddress)
	v.SetDefault("discovery.enabled", true)
	v.SetDefault("discovery.interval", int(DefaultDiscoveryInterval.Seconds()))
	v.SetDefault("device.info_timeout", int(DefaultInfoTimeout.Seconds()))
	v.SetDefault("device.reconnect_base", int(DefaultReconnectBase.Milliseconds()))
	v.SetDefault("device.reconnect_cap", int(DefaultReconnectCap.Seconds()))
	v.SetDefault("updates.repository", "Aircoookie/WLED")
	v.SetDefault("updates.interval_minutes", int(DefaultCatalogInterval.Minutes()))
	v.SetDefault("registry.file", RegistryPath())
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.format", LogFormatText)

	// Add config paths
	if configFile != "" {
		v.SetConfigFile(configFile)
		slog.Info("Using config file from command line", "path", configFile)
	} else {
		configPath := getConfigPath(configName)
		v.SetConfigFile(configPath)

		// Create config directory if it doesn't exist
		configDir := getConfigBaseDir()
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, fmt.Errorf("error creating config directory: %w", err)
		}

		// Only log if config file exists
		if _, err := os.Stat(configPath); err == nil {
			slog.Info("Using default config file", "path", configPath)
		}
	}

	// Read config file - Viper will use defaults if file not found
	v.ReadInConfig()

	// Bind environment variables
	v.SetEnvPrefix("WLEDD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		API: APIConfig{
			ListenAddress: v.GetString("api.listen_address"),
		},
		Discovery: DiscoveryConfig{
			Enabled:         v.GetBool("discovery.enabled"),
			IntervalSeconds: v.GetInt("discovery.interval"),
		},
		Device: DeviceConfig{
			InfoTimeoutSeconds:  v.GetInt("device.info_timeout"),
			ReconnectBaseMillis: v.GetInt("device.reconnect_base"),
			ReconnectCapSeconds: v.GetInt("device.reconnect_cap"),
		},
		Updates: UpdatesConfig{
			Repository:      v.GetString("updates.repository"),
			IntervalMinutes: v.GetInt("updates.interval_minutes"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		RegistryFile: v.GetString("registry.file"),
		v:            v,
	}

	return cfg, nil
}

// Interval returns the time between mDNS scans as a duration.
func (c *DiscoveryConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return DefaultDiscoveryInterval
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// InfoTimeout returns the first-contact fetch timeout as a duration.
func (c *DeviceConfig) InfoTimeout() time.Duration {
	if c.InfoTimeoutSeconds <= 0 {
		return DefaultInfoTimeout
	}
	return time.Duration(c.InfoTimeoutSeconds) * time.Second
}

// ReconnectBase returns the initial reconnect backoff as a duration.
func (c *DeviceConfig) ReconnectBase() time.Duration {
	if c.ReconnectBaseMillis <= 0 {
		return DefaultReconnectBase
	}
	return time.Duration(c.ReconnectBaseMillis) * time.Millisecond
}

// ReconnectCap returns the reconnect backoff ceiling as a duration.
func (c *DeviceConfig) ReconnectCap() time.Duration {
	if c.ReconnectCapSeconds <= 0 {
		return DefaultReconnectCap
	}
	return time.Duration(c.ReconnectCapSeconds) * time.Second
}

// Interval returns the catalog refresh interval as a duration.
func (c *UpdatesConfig) Interval() time.Duration {
	if c.IntervalMinutes <= 0 {
		return DefaultCatalogInterval
	}
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// Save saves the configuration to file
func (c *Config) Save(filename string) error {
	logger := slog.Default()
	configDir := getConfigBaseDir()
	configPath := getConfigPath(filename)

	logger.Info("Saving configuration", "path", configPath)

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Set config file path
	c.v.SetConfigFile(configPath)

	// Update viper with current values
	c.v.Set("api", c.API)
	c.v.Set("discovery", c.Discovery)
	c.v.Set("device", c.Device)
	c.v.Set("updates", c.Updates)
	c.v.Set("logging", c.Logging)

	// Write config - Viper will create the file if it doesn't exist
	if err := c.v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	logger.Info("Configuration saved successfully", "path", configPath)
	return nil
}

// Get retrieves a value from the configuration
func (c *Config) Get(key string) interface{} {
	if c.v == nil {
		return nil
	}
	return c.v.Get(key)
}

// Set sets a value in the configuration
func (c *Config) Set(key string, value interface{}) {
	if c.v == nil {
		return
	}
	c.v.Set(key, value)
}
