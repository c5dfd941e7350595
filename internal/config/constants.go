package config

import "time"

// Common constants shared between daemon and client
const (
	// ConfigDirName is the name of the config directory within XDG_CONFIG_HOME
	ConfigDirName = "wledd"

	// DaemonConfigFilename is the base filename for daemon config
	DaemonConfigFilename = "wledd.yaml"

	// ClientConfigFilename is the base filename for client config
	ClientConfigFilename = "wledctl.yaml"

	// RegistryFilename is the base filename for the persisted device registry
	RegistryFilename = "devices.json"

	// DefaultAPIListenAddress is the default HTTP API listen address
	DefaultAPIListenAddress = "127.0.0.1:8123"
)

// Default timeouts and intervals
const (
	// DefaultDiscoveryInterval is the time between mDNS scans
	DefaultDiscoveryInterval = 30 * time.Second

	// DefaultInfoTimeout bounds the first-contact fetch of a device's
	// self-description endpoint
	DefaultInfoTimeout = 10 * time.Second

	// DefaultReconnectBase is the initial reconnect backoff delay
	DefaultReconnectBase = 2500 * time.Millisecond

	// DefaultReconnectCap is the maximum reconnect backoff delay
	DefaultReconnectCap = 60 * time.Second

	// DefaultCatalogInterval is how often the release catalog is refreshed
	DefaultCatalogInterval = 6 * time.Hour

	// DefaultLastSeenGranularity bounds how often a device's last-seen
	// timestamp is persisted; heartbeats inside the window are not written
	DefaultLastSeenGranularity = 60 * time.Second
)

// Device constraints
const (
	// MinBrightness is the minimum allowed brightness value
	MinBrightness = 0

	// MaxBrightness is the maximum allowed brightness value
	MaxBrightness = 255
)

// Logging constants
const (
	// LogLevelDebug represents debug log level
	LogLevelDebug = "debug"

	// LogLevelInfo represents info log level
	LogLevelInfo = "info"

	// LogLevelWarn represents warning log level
	LogLevelWarn = "warn"

	// LogLevelError represents error log level
	LogLevelError = "error"

	// LogFormatText represents text log format
	LogFormatText = "text"

	// LogFormatJSON represents JSON log format
	LogFormatJSON = "json"
)
