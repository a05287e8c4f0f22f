package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Device        DeviceConfig   `yaml:"device"`
	Polling       PollingConfig  `yaml:"polling"`
	Logging       LoggingConfig  `yaml:"logging"`
	Database      DatabaseConfig `yaml:"database"`
	HTTP          HTTPConfig     `yaml:"http"`
	MQTT          MQTTConfig     `yaml:"mqtt"`
	HomeAssistant HAConfig       `yaml:"home_assistant,omitempty"`
}

// DeviceConfig describes how to reach the Eco Mane unit
type DeviceConfig struct {
	Address        string        `yaml:"address" env:"ECOMANE_ADDRESS" env-default:"192.168.1.220"`
	Encoding       string        `yaml:"encoding" env:"ECOMANE_ENCODING" env-default:"shift_jis"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"ECOMANE_REQUEST_TIMEOUT" env-default:"30s"`
	UsagePath      string        `yaml:"usage_path" env:"ECOMANE_USAGE_PATH" env-default:"ecoTopMoni.cgi"`
	PowerPath      string        `yaml:"power_path" env:"ECOMANE_POWER_PATH" env-default:"elecCheck_6000.cgi?disp=2"`
	SlotPrefix     string        `yaml:"slot_prefix" env:"ECOMANE_SLOT_PREFIX" env-default:"ojt"`
}

// PollingConfig controls the update cycle
type PollingConfig struct {
	Interval      time.Duration `yaml:"interval" env:"ECOMANE_POLL_INTERVAL" env-default:"60s"`
	RetryInterval time.Duration `yaml:"retry_interval" env:"ECOMANE_RETRY_INTERVAL" env-default:"120s"`
}

// DatabaseConfig controls the SQLite history store
type DatabaseConfig struct {
	Disabled  bool   `yaml:"disabled" env:"ECOMANE_DB_DISABLED"`
	Path      string `yaml:"path" env:"ECOMANE_DB_PATH" env-default:"data.db"`
	KeepPolls int    `yaml:"keep_polls" env:"ECOMANE_DB_KEEP_POLLS" env-default:"1440"`
}

// HTTPConfig controls the API served by `serve`
type HTTPConfig struct {
	Listen string `yaml:"listen" env:"ECOMANE_HTTP_LISTEN" env-default:":9191"`
}

// MQTTConfig holds MQTT broker configuration for Home Assistant discovery
type MQTTConfig struct {
	Enabled         bool   `yaml:"enabled" env:"ECOMANE_MQTT_ENABLED"`
	Broker          string `yaml:"broker" env:"ECOMANE_MQTT_BROKER"` // host:port
	Username        string `yaml:"username,omitempty" env:"ECOMANE_MQTT_USERNAME"`
	Password        string `yaml:"password,omitempty" env:"ECOMANE_MQTT_PASSWORD"`
	ClientID        string `yaml:"client_id" env:"ECOMANE_MQTT_CLIENT_ID" env-default:"ecomane"`
	TopicPrefix     string `yaml:"topic_prefix" env:"ECOMANE_MQTT_TOPIC_PREFIX" env-default:"ecomane"`
	DiscoveryPrefix string `yaml:"discovery_prefix" env:"ECOMANE_MQTT_DISCOVERY_PREFIX" env-default:"homeassistant"`
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	Enabled bool   `yaml:"enabled" env:"ECOMANE_HA_ENABLED"`
	URL     string `yaml:"url" env:"ECOMANE_HA_URL"`     // e.g., "http://homeassistant.local:8123"
	Token   string `yaml:"token" env:"ECOMANE_HA_TOKEN"` // Long-lived access token
}

// Load reads the config file and applies ECOMANE_* environment overrides.
// A missing file is not an error; defaults and the environment are used.
func Load(configPath string) (*Config, error) {
	var cfg Config

	_, err := os.Stat(configPath)
	switch {
	case err == nil:
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("reading environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Default returns a config populated with the built-in defaults
func Default() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}
	return &cfg, nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Device.Address) == "" {
		return fmt.Errorf("device.address is required")
	}
	if _, err := url.Parse(c.Device.BaseURL()); err != nil {
		return fmt.Errorf("invalid device.address: %w", err)
	}
	if c.Device.RequestTimeout < 0 {
		return fmt.Errorf("device.request_timeout must not be negative, got %s", c.Device.RequestTimeout)
	}
	if c.Polling.Interval <= 0 {
		return fmt.Errorf("polling.interval must be positive, got %s", c.Polling.Interval)
	}
	if c.Polling.RetryInterval <= 0 {
		return fmt.Errorf("polling.retry_interval must be positive, got %s", c.Polling.RetryInterval)
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.HomeAssistant.Enabled {
		if c.HomeAssistant.URL == "" {
			return fmt.Errorf("home_assistant.url is required when enabled")
		}
		if c.HomeAssistant.Token == "" {
			return fmt.Errorf("home_assistant.token is required when enabled")
		}
	}

	if err := ValidateLogging(&c.Logging); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	return nil
}

// BaseURL returns the device root URL. A bare host or IP is given the http
// scheme.
func (d DeviceConfig) BaseURL() string {
	addr := strings.TrimRight(strings.TrimSpace(d.Address), "/")
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return "http://" + addr
}

// GetDBPath returns the database path, letting a non-empty override win
func (c *Config) GetDBPath(override string) string {
	if override != "" {
		return override
	}
	if c.Database.Path == "" {
		return "data.db"
	}
	return c.Database.Path
}
