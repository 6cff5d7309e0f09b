package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	devAccessSecret  = "dev-access-secret-change-in-production"
	devRefreshSecret = "dev-refresh-secret-change-in-production"
)

type Config struct {
	Port               string        `yaml:"port"`
	Env                string        `yaml:"env"`
	DBDriver           string        `yaml:"db_driver"`
	DatabaseDSN        string        `yaml:"database_dsn"`
	AccessTokenSecret  string        `yaml:"access_token_secret"`
	RefreshTokenSecret string        `yaml:"refresh_token_secret"`
	ClientURL          string        `yaml:"client_url"`
	TrustProxy         bool          `yaml:"trust_proxy"`
	RedisAddr          string        `yaml:"redis_addr"`
	SnowflakeNode      int64         `yaml:"snowflake_node"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`

	SMTP SMTPConfig `yaml:"smtp"`
	Log  LogConfig  `yaml:"log"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dev   bool   `yaml:"dev"`
	File  string `yaml:"file"`
}

// Load reads configuration from the environment and, when CONFIG_FILE points
// at an existing file, overlays the YAML values found there.
func Load() (Config, error) {
	cfg := Config{
		Port:               getEnv("PORT", "5000"),
		Env:                getEnv("ENV", "production"),
		DBDriver:           getEnv("DB_DRIVER", "mysql"),
		DatabaseDSN:        getEnv("DATABASE_DSN", "root:password@tcp(127.0.0.1:3306)/taskflow?parseTime=true"),
		AccessTokenSecret:  getEnv("ACCESS_TOKEN_SECRET", devAccessSecret),
		RefreshTokenSecret: getEnv("REFRESH_TOKEN_SECRET", devRefreshSecret),
		ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
		TrustProxy:         getEnvBool("TRUST_PROXY", false),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		SnowflakeNode:      getEnvInt("SNOWFLAKE_NODE", 1),
		ShutdownTimeout:    10 * time.Second,
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     int(getEnvInt("SMTP_PORT", 587)),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASS", ""),
			From:     getEnv("MAIL_FROM", "TaskFlow <no-reply@taskflow.local>"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", ""),
			Dev:   getEnv("LOG_DEV", "") == "1",
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := overlayYAML(path, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.ClientURL = strings.TrimRight(cfg.ClientURL, "/")
	return cfg, cfg.Validate()
}

// IsDevelopment reports whether the service runs with development defaults:
// insecure cookies and stack traces in 500 responses. Only an explicit
// ENV=development enables them.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Validate checks settings that would make the service unsafe to start.
func (c Config) Validate() error {
	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		return errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must be set")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if !c.IsDevelopment() && (c.AccessTokenSecret == devAccessSecret || c.RefreshTokenSecret == devRefreshSecret) {
		return fmt.Errorf("token secrets must be set in %s environment", c.Env)
	}
	switch c.DBDriver {
	case "mysql", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.SnowflakeNode < 0 || c.SnowflakeNode > 1023 {
		return fmt.Errorf("SNOWFLAKE_NODE %d out of range 0-1023", c.SnowflakeNode)
	}
	return nil
}

// A missing file keeps the environment values; an unreadable or malformed one is an error.
func overlayYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
