package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets the keys Load reads so ambient values cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CONFIG_FILE", "ENV", "PORT", "DB_DRIVER", "ACCESS_TOKEN_SECRET", "REFRESH_TOKEN_SECRET"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ACCESS_TOKEN_SECRET", "a-secret")
	t.Setenv("REFRESH_TOKEN_SECRET", "r-secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.False(t, cfg.IsDevelopment(), "an unset ENV must not enable development mode")
}

func TestLoadUnsetEnvRejectsDevSecrets(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	assert.Error(t, err)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadDevelopmentDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, devAccessSecret, cfg.AccessTokenSecret)
	assert.NotEqual(t, cfg.AccessTokenSecret, cfg.RefreshTokenSecret)
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskflow.yml")
	yml := "port: \"9090\"\ndb_driver: memory\nclient_url: https://app.example.com/\nsmtp:\n  host: smtp.example.com\n  port: 2525\nlog:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	clearEnv(t)
	t.Setenv("ENV", "development")
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port, "file values override the environment")
	assert.Equal(t, "memory", cfg.DBDriver)
	assert.Equal(t, "https://app.example.com", cfg.ClientURL)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "development")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yml"))
	_, err := Load()
	assert.NoError(t, err)
}

func TestLoadMalformedConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unterminated"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Env:                "production",
		DBDriver:           "postgres",
		AccessTokenSecret:  "a-secret",
		RefreshTokenSecret: "r-secret",
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing access secret", func(c *Config) { c.AccessTokenSecret = "" }, true},
		{"same secrets", func(c *Config) { c.RefreshTokenSecret = c.AccessTokenSecret }, true},
		{"dev secret in production", func(c *Config) { c.AccessTokenSecret = devAccessSecret }, true},
		{"dev secret in development", func(c *Config) { c.Env = "development"; c.AccessTokenSecret = devAccessSecret }, false},
		{"dev secret in staging", func(c *Config) { c.Env = "staging"; c.RefreshTokenSecret = devRefreshSecret }, true},
		{"dev secret with empty env", func(c *Config) { c.Env = ""; c.AccessTokenSecret = devAccessSecret }, true},
		{"unknown driver", func(c *Config) { c.DBDriver = "sqlite" }, true},
		{"snowflake node out of range", func(c *Config) { c.SnowflakeNode = 2048 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
