// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `cloud:
  email: user@example.com
  password: secret
device:
  mac: "AA:BB:CC:DD:EE:FF"
logging:
  level: debug
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Cloud.Email != "user@example.com" {
		t.Errorf("Cloud.Email = %q, want %q", cfg.Cloud.Email, "user@example.com")
	}
	if cfg.Device.Mac != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("Device.Mac = %q, want the raw configured value", cfg.Device.Mac)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Discovery.BroadcastPort != 20002 {
		t.Errorf("BroadcastPort = %d, want 20002", cfg.Discovery.BroadcastPort)
	}
	if cfg.Discovery.BroadcastTimeout != 1500*time.Millisecond {
		t.Errorf("BroadcastTimeout = %v, want 1.5s", cfg.Discovery.BroadcastTimeout)
	}
	if cfg.Discovery.PingTimeout != 150*time.Millisecond {
		t.Errorf("PingTimeout = %v, want 150ms", cfg.Discovery.PingTimeout)
	}
	if cfg.Discovery.ProbesPerSecond != 128 {
		t.Errorf("ProbesPerSecond = %d, want 128", cfg.Discovery.ProbesPerSecond)
	}
	if cfg.Discovery.NeighborTimeout != 5*time.Second {
		t.Errorf("NeighborTimeout = %v, want 5s", cfg.Discovery.NeighborTimeout)
	}
}

func TestLoadDiscoveryOverrides(t *testing.T) {
	yaml := validYAML + `discovery:
  broadcast_port: 9999
  broadcast_timeout: 2s
  ping_timeout: 200ms
  probes_per_second: 64
`
	cfg, err := Load(writeTempConfig(t, yaml))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Discovery.BroadcastPort != 9999 {
		t.Errorf("BroadcastPort = %d, want 9999", cfg.Discovery.BroadcastPort)
	}
	if cfg.Discovery.BroadcastTimeout != 2*time.Second {
		t.Errorf("BroadcastTimeout = %v, want 2s", cfg.Discovery.BroadcastTimeout)
	}
	if cfg.Discovery.PingTimeout != 200*time.Millisecond {
		t.Errorf("PingTimeout = %v, want 200ms", cfg.Discovery.PingTimeout)
	}
	if cfg.Discovery.ProbesPerSecond != 64 {
		t.Errorf("ProbesPerSecond = %d, want 64", cfg.Discovery.ProbesPerSecond)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("TAPO_CLOUD_EMAIL", "env@example.com")
	t.Setenv("TAPO_DEVICE_MAC", "11-22-33-44-55-66")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(writeTempConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Cloud.Email != "env@example.com" {
		t.Errorf("Cloud.Email = %q, want env override", cfg.Cloud.Email)
	}
	if cfg.Device.Mac != "11-22-33-44-55-66" {
		t.Errorf("Device.Mac = %q, want env override", cfg.Device.Mac)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want env override", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeTempConfig(t, "cloud: [not: valid"))
	if err == nil {
		t.Fatal("Load() should fail for malformed YAML")
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name: "missing email",
			yaml: `cloud:
  password: secret
device:
  mac: "AA:BB:CC:DD:EE:FF"
`,
			wantMsg: "Email",
		},
		{
			name: "bad email format",
			yaml: `cloud:
  email: not-an-email
  password: secret
device:
  mac: "AA:BB:CC:DD:EE:FF"
`,
			wantMsg: "Email",
		},
		{
			name: "no device target",
			yaml: `cloud:
  email: user@example.com
  password: secret
`,
			wantMsg: "device.mac or device.alias",
		},
		{
			name: "malformed MAC",
			yaml: `cloud:
  email: user@example.com
  password: secret
device:
  mac: "not-a-mac"
`,
			wantMsg: "not a valid MAC",
		},
		{
			name: "influxdb url without token",
			yaml: validYAML + `influxdb:
  url: http://localhost:8086
`,
			wantMsg: "Token",
		},
		{
			name: "plaintext http to remote influxdb",
			yaml: validYAML + `influxdb:
  url: http://influx.example.com:8086
  token: some-token
  organization: org
  bucket: bucket
`,
			wantMsg: "HTTPS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("Load() should have failed validation")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestAliasOnlyTargetIsValid(t *testing.T) {
	yaml := `cloud:
  email: user@example.com
  password: secret
device:
  alias: "Living Room Plug"
`
	cfg, err := Load(writeTempConfig(t, yaml))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Device.Alias != "Living Room Plug" {
		t.Errorf("Device.Alias = %q", cfg.Device.Alias)
	}
}

func TestInfluxDBEnabled(t *testing.T) {
	cfg := InfluxDBConfig{}
	if cfg.Enabled() {
		t.Error("Enabled() should be false with no URL")
	}
	cfg.URL = "http://localhost:8086"
	if !cfg.Enabled() {
		t.Error("Enabled() should be true with a URL")
	}
}
