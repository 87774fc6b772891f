package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-site"
homee:
  address: "192.168.1.20"
  username: "admin"
  password: "secret"
  response_window_ms: 500
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8081
bridge:
  health_interval: 15
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}

	if cfg.Homee.Address != "192.168.1.20" {
		t.Errorf("Homee.Address = %q, want %q", cfg.Homee.Address, "192.168.1.20")
	}

	if got := cfg.Homee.ResponseWindowDuration(); got != 500*time.Millisecond {
		t.Errorf("ResponseWindowDuration() = %v, want 500ms", got)
	}

	// Unset keys keep their defaults.
	if cfg.Homee.Port != 7681 {
		t.Errorf("Homee.Port = %d, want 7681", cfg.Homee.Port)
	}

	if got := cfg.GetHealthInterval(); got != 15*time.Second {
		t.Errorf("GetHealthInterval() = %v, want 15s", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
site:
  id: "site-001"
api:
  port: 8081
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for missing homee address, got nil")
	}
	if !strings.Contains(err.Error(), "homee.address is required") {
		t.Errorf("error = %v, want homee.address message", err)
	}
}

func TestLoad_EnvSuppliesCredentials(t *testing.T) {
	t.Setenv("GRAYLOGIC_HOMEE_ADDRESS", "hub.lan")
	t.Setenv("GRAYLOGIC_HOMEE_USERNAME", "admin")
	t.Setenv("GRAYLOGIC_HOMEE_PASSWORD", "from-env")

	cfg, err := Load(writeConfig(t, "site:\n  id: \"site-001\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Homee.Password != "from-env" {
		t.Errorf("Homee.Password = %q, want %q", cfg.Homee.Password, "from-env")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Homee.Address = "192.168.1.20"
		cfg.Homee.Username = "admin"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}, wantErr: false},
		{name: "missing site ID", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: true},
		{name: "missing homee address", mutate: func(c *Config) { c.Homee.Address = "" }, wantErr: true},
		{name: "missing homee username", mutate: func(c *Config) { c.Homee.Username = "" }, wantErr: true},
		{name: "homee port out of range", mutate: func(c *Config) { c.Homee.Port = 70000 }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{
			name: "api port ignored when disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
			wantErr: false,
		},
		{name: "influxdb without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{MQTT: MQTTConfig{QoS: 5}, API: APIConfig{Enabled: true}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	for _, want := range []string{"site.id", "homee.address", "homee.username", "mqtt.qos", "api.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestHomeeConfig_Durations(t *testing.T) {
	h := HomeeConfig{IOTimeout: 5, PollInterval: 250, ResponseWindow: 1000, ReconnectDelay: 5}

	if got := h.IOTimeoutDuration(); got != 5*time.Second {
		t.Errorf("IOTimeoutDuration() = %v, want 5s", got)
	}
	if got := h.PollIntervalDuration(); got != 250*time.Millisecond {
		t.Errorf("PollIntervalDuration() = %v, want 250ms", got)
	}
	if got := h.ResponseWindowDuration(); got != time.Second {
		t.Errorf("ResponseWindowDuration() = %v, want 1s", got)
	}
	if got := h.ReconnectDelayDuration(); got != 5*time.Second {
		t.Errorf("ReconnectDelayDuration() = %v, want 5s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYLOGIC_HOMEE_ADDRESS", "abcdef.hom.ee")
	t.Setenv("GRAYLOGIC_HOMEE_USERNAME", "homeeuser")
	t.Setenv("GRAYLOGIC_HOMEE_PASSWORD", "homeepass")
	t.Setenv("GRAYLOGIC_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYLOGIC_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYLOGIC_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYLOGIC_API_HOST", "192.168.1.1")
	t.Setenv("GRAYLOGIC_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"Homee.Address", cfg.Homee.Address, "abcdef.hom.ee"},
		{"Homee.Username", cfg.Homee.Username, "homeeuser"},
		{"Homee.Password", cfg.Homee.Password, "homeepass"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}

	if cfg.Homee.Port != 7681 {
		t.Errorf("defaultConfig Homee.Port = %d, want 7681", cfg.Homee.Port)
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.API.Port != 8081 {
		t.Errorf("defaultConfig API.Port = %d, want 8081", cfg.API.Port)
	}
}
