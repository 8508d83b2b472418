package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort               = 8000
	defaultEnv                = "development"
	defaultDBHost             = "127.0.0.1"
	defaultDBPort             = 5432
	defaultDBUser             = "postgres"
	defaultDBName             = "tienda"
	defaultDBSSLMode          = "disable"
	defaultJWTAlgorithm       = "HS256"
	defaultAccessTTLMin       = 30
	defaultRefreshTTLMin      = 7 * 24 * 60
	defaultFrontendHost       = "http://localhost:3000"
	defaultMailPort           = 587
	defaultRateLimitMax       = 10
	defaultRateLimitWindowSec = 60
)

// AppConfig holds runtime startup configuration loaded from YAML and the
// environment. It is built once in main and injected everywhere; there is no
// ambient settings lookup.
type AppConfig struct {
	AppName        string          `yaml:"app_name"`
	Port           int             `yaml:"port"`
	Env            string          `yaml:"env"` // "development" | "production"
	Database       DatabaseConfig  `yaml:"database"`
	RedisURL       string          `yaml:"redis_url"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	FrontendHost   string          `yaml:"frontend_host"`
	JWT            JWTConfig       `yaml:"jwt"`
	Mail           MailConfig      `yaml:"mail"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	Timezone string `yaml:"timezone"`
}

// JWTConfig carries the signing secret and token lifetimes. The secret has no
// default; Load fails without one.
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	Algorithm         string `yaml:"algorithm"`
	AccessTTLMinutes  int    `yaml:"access_ttl_minutes"`
	RefreshTTLMinutes int    `yaml:"refresh_ttl_minutes"`
}

func (j JWTConfig) AccessTTL() time.Duration {
	return time.Duration(j.AccessTTLMinutes) * time.Minute
}

func (j JWTConfig) RefreshTTL() time.Duration {
	return time.Duration(j.RefreshTTLMinutes) * time.Minute
}

type MailConfig struct {
	Enable    bool   `yaml:"enable"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Pass      string `yaml:"pass"`
	From      string `yaml:"from"`
	ReplyTo   string `yaml:"reply_to"`
	UseResend bool   `yaml:"use_resend"`
	ResendKey string `yaml:"resend_key"`
}

type RateLimitConfig struct {
	Max           int `yaml:"max"`
	WindowSeconds int `yaml:"window_seconds"`
}

func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool { return c.Env != "production" }

// Load reads the YAML config file (if present), applies environment
// overrides and validates required settings.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{
		AppName: "tienda",
		Port:    defaultPort,
		Env:     defaultEnv,
		Database: DatabaseConfig{
			Host:    defaultDBHost,
			Port:    defaultDBPort,
			User:    defaultDBUser,
			Name:    defaultDBName,
			SSLMode: defaultDBSSLMode,
		},
		FrontendHost: defaultFrontendHost,
		JWT: JWTConfig{
			Algorithm:         defaultJWTAlgorithm,
			AccessTTLMinutes:  defaultAccessTTLMin,
			RefreshTTLMinutes: defaultRefreshTTLMin,
		},
		Mail: MailConfig{Port: defaultMailPort},
		RateLimit: RateLimitConfig{
			Max:           defaultRateLimitMax,
			WindowSeconds: defaultRateLimitWindowSec,
		},
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Environment-only configuration is fine.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("jwt secret is required (set jwt.secret or JWT_SECRET)")
	}
	if c.JWT.AccessTTLMinutes <= 0 || c.JWT.RefreshTTLMinutes <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.JWT.AccessTTLMinutes > c.JWT.RefreshTTLMinutes {
		return errors.New("access token TTL must not exceed refresh token TTL")
	}
	return nil
}

func applyEnv(cfg *AppConfig) {
	setString(&cfg.AppName, "APP_NAME")
	setInt(&cfg.Port, "PORT")
	setString(&cfg.Env, "APP_ENV")
	setString(&cfg.Database.Host, "POSTGRES_HOST")
	setInt(&cfg.Database.Port, "POSTGRES_PORT")
	setString(&cfg.Database.User, "POSTGRES_USER")
	setString(&cfg.Database.Password, "POSTGRES_PASSWORD")
	setString(&cfg.Database.Name, "POSTGRES_DB")
	setString(&cfg.Database.SSLMode, "POSTGRES_SSLMODE")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.FrontendHost, "FRONTEND_HOST")
	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.JWT.Algorithm, "JWT_ALGORITHM")
	setInt(&cfg.JWT.AccessTTLMinutes, "ACCESS_TOKEN_EXPIRE_MINUTES")
	setInt(&cfg.JWT.RefreshTTLMinutes, "REFRESH_TOKEN_EXPIRE_MINUTES")
	setString(&cfg.Mail.Host, "MAIL_SERVER")
	setInt(&cfg.Mail.Port, "MAIL_PORT")
	setString(&cfg.Mail.User, "MAIL_USERNAME")
	setString(&cfg.Mail.Pass, "MAIL_PASSWORD")
	setString(&cfg.Mail.From, "MAIL_FROM")
	if v := os.Getenv("MAIL_ENABLE"); v != "" {
		cfg.Mail.Enable = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		cfg.AllowedOrigins = origins
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
