package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for zmapp.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

// AppConfig identifies the deployment.
type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// TrustProxy makes the server take the client address from X-Forwarded-For.
	// Only enable behind a reverse proxy that sets the header.
	TrustProxy bool `yaml:"trust_proxy"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig groups every authentication and session setting.
type SecurityConfig struct {
	JWT        JWTConfig        `yaml:"jwt"`
	Password   PasswordConfig   `yaml:"password"`
	Throttle   ThrottleConfig   `yaml:"throttle"`
	Lockout    LockoutConfig    `yaml:"lockout"`
	Cookie     CookieConfig     `yaml:"cookie"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Revocation RevocationConfig `yaml:"revocation"`
	Seed       SeedConfig       `yaml:"seed"`
}

// JWTConfig contains token signing settings.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`

	// SessionTTL and RefreshTTL accept Go duration strings ("168h").
	SessionTTL time.Duration `yaml:"session_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
}

// PasswordConfig selects the hashing algorithm and its work factor.
type PasswordConfig struct {
	// Algorithm is "argon2id" or "bcrypt".
	Algorithm     string `yaml:"algorithm"`
	Argon2Time    uint32 `yaml:"argon2_time"`
	Argon2Memory  uint32 `yaml:"argon2_memory_kib"`
	Argon2Threads uint8  `yaml:"argon2_threads"`
	BcryptCost    int    `yaml:"bcrypt_cost"`
}

// ThrottleConfig holds the fixed-window policies per namespace.
type ThrottleConfig struct {
	Login         ThrottlePolicyConfig `yaml:"login"`
	Register      ThrottlePolicyConfig `yaml:"register"`
	SweepInterval time.Duration        `yaml:"sweep_interval"`
	MaxEntries    int                  `yaml:"max_entries"`
}

// ThrottlePolicyConfig is one fixed-window policy.
type ThrottlePolicyConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Window      time.Duration `yaml:"window"`
}

// LockoutConfig contains account lockout settings.
type LockoutConfig struct {
	Threshold int           `yaml:"threshold"`
	Duration  time.Duration `yaml:"duration"`
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string        `yaml:"name"`
	Secure bool          `yaml:"secure"`
	MaxAge time.Duration `yaml:"max_age"`
	Path   string        `yaml:"path"`
}

// RateLimitConfig contains the general per-client request limiter settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// RevocationConfig enables the token id deny-list.
type RevocationConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SeedConfig controls the first system administrator account.
type SeedConfig struct {
	AdminEmail string `yaml:"admin_email"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// KafkaConfig contains the security event stream settings.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`

	// WriteTimeout is in seconds.
	WriteTimeout int `yaml:"write_timeout"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values
//  2. YAML file values
//  3. Environment variables (ZMAPP_SECTION_KEY)
//
// A missing file is an error; use LoadDefaults to start without one.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadDefaults builds a configuration from defaults and environment variables only.
func LoadDefaults() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	const day = 24 * time.Hour
	return &Config{
		App: AppConfig{
			Name:        "zmapp",
			Environment: "production",
		},
		Database: DatabaseConfig{
			Path:        "./data/zmapp.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				Issuer:     "zambia-real-estate",
				Audience:   "zambia-real-estate-users",
				SessionTTL: 7 * day,
				RefreshTTL: 30 * day,
			},
			Password: PasswordConfig{
				Algorithm:     "argon2id",
				Argon2Time:    3,
				Argon2Memory:  64 * 1024,
				Argon2Threads: 1,
				BcryptCost:    12,
			},
			Throttle: ThrottleConfig{
				Login:         ThrottlePolicyConfig{MaxAttempts: 5, Window: 15 * time.Minute},
				Register:      ThrottlePolicyConfig{MaxAttempts: 3, Window: time.Hour},
				SweepInterval: time.Minute,
				MaxEntries:    100_000,
			},
			Lockout: LockoutConfig{
				Threshold: 5,
				Duration:  2 * time.Hour,
			},
			Cookie: CookieConfig{
				Name:   "auth-token",
				Secure: true,
				MaxAge: 7 * day,
				Path:   "/",
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             30,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "zmapp-auth",
			},
			QoS:         1,
			TopicPrefix: "zmapp",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Kafka: KafkaConfig{
			Brokers:      []string{"localhost:9092"},
			Topic:        "zmapp.security-events",
			WriteTimeout: 5,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ZMAPP_ENV"); v != "" {
		cfg.App.Environment = v
	}

	if v := os.Getenv("ZMAPP_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("ZMAPP_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("ZMAPP_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("ZMAPP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// JWT secret: always set from the environment in production.
	if v := os.Getenv("ZMAPP_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("ZMAPP_COOKIE_SECURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Security.Cookie.Secure = b
		}
	}
	if v := os.Getenv("ZMAPP_ADMIN_EMAIL"); v != "" {
		cfg.Security.Seed.AdminEmail = v
	}

	if v := os.Getenv("ZMAPP_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ZMAPP_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ZMAPP_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("ZMAPP_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("ZMAPP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
}

// minJWTSecretLength is the shortest accepted HMAC secret.
const minJWTSecretLength = 32

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	sec := c.Security
	if sec.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set ZMAPP_JWT_SECRET environment variable)")
	} else if len(sec.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}
	if sec.JWT.Issuer == "" || sec.JWT.Audience == "" {
		errs = append(errs, "security.jwt.issuer and security.jwt.audience are required")
	}
	if sec.JWT.SessionTTL <= 0 || sec.JWT.RefreshTTL <= 0 {
		errs = append(errs, "security.jwt.session_ttl and refresh_ttl must be positive")
	}

	switch sec.Password.Algorithm {
	case "argon2id":
		if sec.Password.Argon2Time == 0 || sec.Password.Argon2Memory == 0 || sec.Password.Argon2Threads == 0 {
			errs = append(errs, "security.password argon2 parameters must be positive")
		}
	case "bcrypt":
		if sec.Password.BcryptCost < 4 || sec.Password.BcryptCost > 31 {
			errs = append(errs, "security.password.bcrypt_cost must be between 4 and 31")
		}
	default:
		errs = append(errs, fmt.Sprintf("security.password.algorithm %q is not supported (argon2id, bcrypt)", sec.Password.Algorithm))
	}

	for name, p := range map[string]ThrottlePolicyConfig{
		"login":    sec.Throttle.Login,
		"register": sec.Throttle.Register,
	} {
		if p.MaxAttempts < 1 || p.Window <= 0 {
			errs = append(errs, fmt.Sprintf("security.throttle.%s needs max_attempts >= 1 and a positive window", name))
		}
	}

	if sec.Lockout.Threshold < 1 || sec.Lockout.Duration <= 0 {
		errs = append(errs, "security.lockout needs threshold >= 1 and a positive duration")
	}

	if sec.Cookie.Name == "" {
		errs = append(errs, "security.cookie.name is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		errs = append(errs, "kafka.brokers and kafka.topic are required when kafka is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
