package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.220", cfg.Device.Address)
	assert.Equal(t, "shift_jis", cfg.Device.Encoding)
	assert.Equal(t, "ecoTopMoni.cgi", cfg.Device.UsagePath)
	assert.Equal(t, "elecCheck_6000.cgi?disp=2", cfg.Device.PowerPath)
	assert.Equal(t, "ojt", cfg.Device.SlotPrefix)
	assert.Equal(t, 60*time.Second, cfg.Polling.Interval)
	assert.Equal(t, 120*time.Second, cfg.Polling.RetryInterval)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.False(t, cfg.MQTT.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
device:
  address: 10.0.0.5
polling:
  interval: 30s
logging:
  format: JSON
  level: debug
mqtt:
  enabled: true
  broker: localhost:1883
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.Device.Address)
	assert.Equal(t, "http://10.0.0.5", cfg.Device.BaseURL())
	assert.Equal(t, 30*time.Second, cfg.Polling.Interval)
	// not in the file, so the default applies
	assert.Equal(t, 120*time.Second, cfg.Polling.RetryInterval)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "homeassistant", cfg.MQTT.DiscoveryPrefix)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ECOMANE_ADDRESS", "192.168.50.2")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "192.168.50.2", cfg.Device.Address)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Default()
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.MQTT.Enabled = true
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.HomeAssistant.Enabled = true
	cfg.HomeAssistant.URL = "http://ha.local:8123"
	assert.Error(t, cfg.Validate(), "token is required")

	cfg = base()
	cfg.Polling.RetryInterval = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Default()
	require.NoError(t, err)
	cfg.Device.Address = "192.168.1.77"

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.77", loaded.Device.Address)
	assert.Equal(t, cfg.Polling, loaded.Polling)
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://192.168.1.220", DeviceConfig{Address: "192.168.1.220"}.BaseURL())
	assert.Equal(t, "https://hems.local", DeviceConfig{Address: "https://hems.local/"}.BaseURL())
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"console", "json", "logfmt"} {
		logger, err := NewLogger(&LoggingConfig{Format: format, Level: "debug"})
		require.NoError(t, err, format)
		assert.NotNil(t, logger)
	}
}

func TestValidateLogging(t *testing.T) {
	cfg := &LoggingConfig{Format: "LOGFMT", Level: ""}
	require.NoError(t, ValidateLogging(cfg))
	assert.Equal(t, "logfmt", cfg.Format)
	assert.Equal(t, "info", cfg.Level)

	assert.Error(t, ValidateLogging(&LoggingConfig{Format: "console", Level: "verbose"}))

	_, err := NewLogger(&LoggingConfig{Format: "xml"})
	assert.Error(t, err)
}
