package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/test.db"
api:
  port: 9090
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
    session_ttl: 1h
  throttle:
    login:
      max_attempts: 10
      window: 5m
  lockout:
    threshold: 3
    duration: 30m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Security.JWT.SessionTTL != time.Hour {
		t.Errorf("JWT.SessionTTL = %v, want 1h", cfg.Security.JWT.SessionTTL)
	}
	if cfg.Security.Throttle.Login.MaxAttempts != 10 || cfg.Security.Throttle.Login.Window != 5*time.Minute {
		t.Errorf("Throttle.Login = %+v, want 10/5m", cfg.Security.Throttle.Login)
	}
	if cfg.Security.Lockout.Threshold != 3 || cfg.Security.Lockout.Duration != 30*time.Minute {
		t.Errorf("Lockout = %+v, want 3/30m", cfg.Security.Lockout)
	}

	// Untouched sections keep their defaults.
	if cfg.Security.Throttle.Register.MaxAttempts != 3 || cfg.Security.Throttle.Register.Window != time.Hour {
		t.Errorf("Throttle.Register = %+v, want defaults 3/1h", cfg.Security.Throttle.Register)
	}
	if cfg.Security.JWT.RefreshTTL != 30*24*time.Hour {
		t.Errorf("JWT.RefreshTTL = %v, want 720h", cfg.Security.JWT.RefreshTTL)
	}
	if cfg.Security.Cookie.Name != "auth-token" {
		t.Errorf("Cookie.Name = %q, want auth-token", cfg.Security.Cookie.Name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/from-file.db"
`)
	t.Setenv("ZMAPP_JWT_SECRET", testSecret)
	t.Setenv("ZMAPP_DATABASE_PATH", "/tmp/from-env.db")
	t.Setenv("ZMAPP_API_PORT", "7000")
	t.Setenv("ZMAPP_COOKIE_SECURE", "false")
	t.Setenv("ZMAPP_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/from-env.db" {
		t.Errorf("Database.Path = %q, want env value", cfg.Database.Path)
	}
	if cfg.API.Port != 7000 {
		t.Errorf("API.Port = %d, want 7000", cfg.API.Port)
	}
	if cfg.Security.Cookie.Secure {
		t.Error("Cookie.Secure = true, want false from env")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("Kafka.Brokers = %v, want two brokers from env", cfg.Kafka.Brokers)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ZMAPP_JWT_SECRET", testSecret)

	cfg, err := LoadDefaults()
	if err != nil {
		t.Fatalf("LoadDefaults() error = %v", err)
	}
	if cfg.Security.Password.Algorithm != "argon2id" {
		t.Errorf("Password.Algorithm = %q, want argon2id", cfg.Security.Password.Algorithm)
	}
	if cfg.Security.Lockout.Threshold != 5 || cfg.Security.Lockout.Duration != 2*time.Hour {
		t.Errorf("Lockout defaults = %+v, want 5/2h", cfg.Security.Lockout)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: "security.jwt.secret is required",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: "at least 32 characters",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path is required",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:    "unknown hash algorithm",
			mutate:  func(c *Config) { c.Security.Password.Algorithm = "md5" },
			wantErr: "not supported",
		},
		{
			name: "bcrypt cost out of range",
			mutate: func(c *Config) {
				c.Security.Password.Algorithm = "bcrypt"
				c.Security.Password.BcryptCost = 40
			},
			wantErr: "bcrypt_cost",
		},
		{
			name:    "zero throttle attempts",
			mutate:  func(c *Config) { c.Security.Throttle.Login.MaxAttempts = 0 },
			wantErr: "security.throttle.login",
		},
		{
			name:    "zero lockout duration",
			mutate:  func(c *Config) { c.Security.Lockout.Duration = 0 },
			wantErr: "security.lockout",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
		{
			name: "kafka enabled without brokers",
			mutate: func(c *Config) {
				c.Kafka.Enabled = true
				c.Kafka.Brokers = nil
			},
			wantErr: "kafka.brokers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.JWT.Secret = testSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateReportsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.Path = ""
	cfg.API.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil, want errors")
	}
	for _, want := range []string{"database.path", "api.port", "security.jwt.secret"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, missing %q", err, want)
		}
	}
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 30*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", got)
	}
}
