package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults_NoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")

	cfg, err := Load("test.yaml", configPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIListenAddress, cfg.API.ListenAddress)
	assert.True(t, cfg.Discovery.Enabled)
	assert.Equal(t, "Aircoookie/WLED", cfg.Updates.Repository)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
api:
  listen_address: "0.0.0.0:9000"
discovery:
  enabled: false
device:
  info_timeout: 5
  reconnect_base: 1000
  reconnect_cap: 30
logging:
  level: debug
  format: json
`), 0644))

	cfg, err := Load("test.yaml", configPath)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.API.ListenAddress)
	assert.False(t, cfg.Discovery.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Device.InfoTimeout())
	assert.Equal(t, time.Second, cfg.Device.ReconnectBase())
	assert.Equal(t, 30*time.Second, cfg.Device.ReconnectCap())
	assert.Equal(t, LogLevelDebug, cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
}

func TestDurationHelpers_InvalidFallBackToDefaults(t *testing.T) {
	dc := DeviceConfig{}
	assert.Equal(t, DefaultInfoTimeout, dc.InfoTimeout())
	assert.Equal(t, DefaultReconnectBase, dc.ReconnectBase())
	assert.Equal(t, DefaultReconnectCap, dc.ReconnectCap())

	uc := UpdatesConfig{IntervalMinutes: -1}
	assert.Equal(t, DefaultCatalogInterval, uc.Interval())
}

func TestEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")

	t.Setenv("WLEDD_LOGGING_LEVEL", "warn")
	cfg, err := Load("test.yaml", configPath)
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, cfg.Logging.Level)
}
