// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

// Package config provides configuration management for TapoToggle.
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ckempo/TapoToggle/pkg/macaddr"
)

// Config represents the application configuration
type Config struct {
	Cloud     CloudConfig     `yaml:"cloud" validate:"required"`
	Device    DeviceConfig    `yaml:"device"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CloudConfig holds TP-Link cloud account credentials
type CloudConfig struct {
	Email    string `yaml:"email" validate:"required,email"`
	Password string `yaml:"password" validate:"required"`
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
}

// DeviceConfig selects the target device from the cloud device list.
// At least one of MAC or alias must be set.
type DeviceConfig struct {
	Mac   string `yaml:"mac"`
	Alias string `yaml:"alias"`
}

// DiscoveryConfig tunes the local discovery engine
type DiscoveryConfig struct {
	BroadcastPort    int           `yaml:"broadcast_port" validate:"min=1,max=65535"`
	BroadcastTimeout time.Duration `yaml:"broadcast_timeout" validate:"min=100ms,max=30s"`
	PingTimeout      time.Duration `yaml:"ping_timeout" validate:"min=10ms,max=5s"`
	ProbesPerSecond  int           `yaml:"probes_per_second" validate:"min=1,max=1024"`
	NeighborTimeout  time.Duration `yaml:"neighbor_timeout" validate:"min=1s,max=60s"`
}

// InfluxDBConfig holds optional toggle-event recording settings.
// An empty URL disables recording.
type InfluxDBConfig struct {
	URL          string `yaml:"url" validate:"omitempty,url"`
	Token        string `yaml:"token" validate:"required_with=URL"`
	Organization string `yaml:"organization" validate:"required_with=URL"`
	Bucket       string `yaml:"bucket" validate:"required_with=URL"`
}

// Enabled reports whether toggle-event recording is configured.
func (c InfluxDBConfig) Enabled() bool {
	return c.URL != ""
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error fatal panic"`
}

var hexMacPattern = regexp.MustCompile(`^[0-9a-f]{12}$`)

// Load reads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.setDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvironmentOverrides applies environment variable overrides to the configuration
func (c *Config) applyEnvironmentOverrides() {
	if email := os.Getenv("TAPO_CLOUD_EMAIL"); email != "" {
		c.Cloud.Email = email
	}
	if password := os.Getenv("TAPO_CLOUD_PASSWORD"); password != "" {
		c.Cloud.Password = password
	}
	if mac := os.Getenv("TAPO_DEVICE_MAC"); mac != "" {
		c.Device.Mac = mac
	}
	if url := os.Getenv("INFLUXDB_URL"); url != "" {
		c.InfluxDB.URL = url
	}
	if token := os.Getenv("INFLUXDB_TOKEN"); token != "" {
		c.InfluxDB.Token = token
	}
	if org := os.Getenv("INFLUXDB_ORG"); org != "" {
		c.InfluxDB.Organization = org
	}
	if bucket := os.Getenv("INFLUXDB_BUCKET"); bucket != "" {
		c.InfluxDB.Bucket = bucket
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// setDefaults sets default values for configuration fields if not provided
func (c *Config) setDefaults() {
	if c.Discovery.BroadcastPort == 0 {
		c.Discovery.BroadcastPort = 20002
	}
	if c.Discovery.BroadcastTimeout == 0 {
		c.Discovery.BroadcastTimeout = 1500 * time.Millisecond
	}
	if c.Discovery.PingTimeout == 0 {
		c.Discovery.PingTimeout = 150 * time.Millisecond
	}
	if c.Discovery.ProbesPerSecond == 0 {
		c.Discovery.ProbesPerSecond = 128
	}
	if c.Discovery.NeighborTimeout == 0 {
		c.Discovery.NeighborTimeout = 5 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if ok := castValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("field %s failed rule %q", first.Namespace(), first.Tag())
		}
		return err
	}

	if err := c.validateDevice(); err != nil {
		return err
	}

	return c.validateInfluxDBSecurity()
}

func castValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

// validateDevice requires a target and a well-formed MAC when one is given
func (c *Config) validateDevice() error {
	if c.Device.Mac == "" && c.Device.Alias == "" {
		return fmt.Errorf("device.mac or device.alias is required")
	}
	if c.Device.Mac != "" {
		if !hexMacPattern.MatchString(macaddr.Normalize(c.Device.Mac)) {
			return fmt.Errorf("device.mac %q is not a valid MAC address", c.Device.Mac)
		}
	}
	return nil
}

// validateInfluxDBSecurity rejects plaintext HTTP for non-local InfluxDB URLs
func (c *Config) validateInfluxDBSecurity() error {
	if !c.InfluxDB.Enabled() {
		return nil
	}

	parsedURL, err := url.Parse(c.InfluxDB.URL)
	if err != nil {
		return fmt.Errorf("influxdb.url is not a valid URL: %w", err)
	}
	if parsedURL.Scheme != "http" {
		return nil
	}

	hostname := strings.ToLower(parsedURL.Hostname())
	isLocal := hostname == "localhost" ||
		hostname == "127.0.0.1" ||
		hostname == "::1" ||
		strings.HasPrefix(hostname, "192.168.") ||
		strings.HasPrefix(hostname, "10.") ||
		strings.HasPrefix(hostname, "172.")

	if !isLocal {
		return fmt.Errorf("influxdb.url must use HTTPS for non-local connections. Using HTTP transmits the token in plaintext")
	}

	return nil
}
