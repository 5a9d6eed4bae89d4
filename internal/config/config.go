package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

const (
	SessionStoreRedis  = "redis"
	SessionStoreMemory = "memory"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// roster & users
	UsersFilePath   string `toml:"users_file_path"`
	StaticDir       string `toml:"static_dir"`
	EnforceCapacity bool   `toml:"enforce_capacity"`

	// sessions
	SessionStore string   `toml:"session_store"`
	SessionTTL   Duration `toml:"session_ttl"`
	CookieSecure bool     `toml:"cookie_secure"`

	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	// http
	AllowedOrigins              []string `toml:"allowed_origins"`
	LoginRateLimitAllowedPerMin int      `toml:"login_rate_limit_per_min"`
	// only with a reverse proxy that overwrites X-Real-Ip and X-Forwarded-For
	TrustProxyHeaders bool `toml:"trust_proxy_headers"`

	// telemetry
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
	TracingEnabled        bool   `toml:"tracing_enabled"`

	Secrets Secrets `toml:"-"`
}

// Secrets never live in the config file.
type Secrets struct {
	RedisPassword    string `env:"MERGINGTON_REDIS_PASS"`
	SentryDSN        string `env:"SENTRY_DSN"`
	UsersFilePath    string `env:"MERGINGTON_USERS_FILE"`
	HoneycombEnabled bool   `env:"HONEYCOMB_ENABLED"`
	HoneycombAPIKey  string `env:"HONEYCOMB_API_KEY"`
}

// Duration lets TOML carry values like "24h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("config for env [%s] missing", env)
	}
	return cfg, nil
}

// Load reads the TOML file, picks the section for env, overlays the
// environment secrets and validates the result.
func Load(env, path string) (*Config, error) {
	var tomlConfig Toml
	if _, err := toml.DecodeFile(path, &tomlConfig); err != nil {
		return nil, fmt.Errorf("decode toml config [%s]: %w", path, err)
	}

	cfg, err := tomlConfig.Get(env)
	if err != nil {
		return nil, err
	}

	if err := cfg.loadSecrets(); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadSecrets() error {
	if err := env.Parse(&c.Secrets); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if c.Secrets.UsersFilePath != "" {
		c.UsersFilePath = c.Secrets.UsersFilePath
	}
	if c.Secrets.HoneycombEnabled {
		c.TracingEnabled = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.SessionStore == "" {
		c.SessionStore = SessionStoreMemory
	}
	if c.SessionTTL.Duration == 0 {
		c.SessionTTL.Duration = 24 * time.Hour
	}
	if c.UsersFilePath == "" {
		c.UsersFilePath = "./assets/users.json"
	}
	if c.StaticDir == "" {
		c.StaticDir = "./static"
	}
	if c.LoginRateLimitAllowedPerMin == 0 {
		c.LoginRateLimitAllowedPerMin = 15
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.RedisHost == "" || c.RedisPort == "" {
			errs = append(errs, errors.New("redis session store needs redis_host and redis_port"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session store [%s]", c.SessionStore))
	}
	if c.SessionTTL.Duration < time.Second {
		errs = append(errs, fmt.Errorf("session ttl %s too short", c.SessionTTL))
	}
	if c.LoginRateLimitAllowedPerMin < 0 {
		errs = append(errs, errors.New("login rate limit must not be negative"))
	}
	return errors.Join(errs...)
}
