// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	DBURL    string `mapstructure:"DB_URL"`

	GithubAppID         string `mapstructure:"GITHUB_APP_ID"`
	GithubAppPrivateKey string `mapstructure:"GITHUB_APP_PRIVATE_KEY"`
	GithubWebhookSecret string `mapstructure:"GITHUB_WEBHOOK_SECRET"`
	// Optional personal access token used for repositories imported without
	// an installation.
	GithubToken string `mapstructure:"GITHUB_TOKEN"`
	// Optional API base URL override (GitHub Enterprise, tests).
	GithubAPIBaseURL string `mapstructure:"GITHUB_API_BASE_URL"`

	SyncInterval    time.Duration `mapstructure:"SYNC_INTERVAL"`
	StalenessWindow time.Duration `mapstructure:"STALENESS_WINDOW"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("SYNC_INTERVAL", "15m")
	viper.SetDefault("STALENESS_WINDOW", "10m")
	viper.SetDefault("REQUEST_TIMEOUT", "30s")

	// Keys without defaults must still be registered or Unmarshal will not
	// see their environment values.
	viper.SetDefault("DB_URL", "")
	viper.SetDefault("GITHUB_APP_ID", "")
	viper.SetDefault("GITHUB_APP_PRIVATE_KEY", "")
	viper.SetDefault("GITHUB_WEBHOOK_SECRET", "")
	viper.SetDefault("GITHUB_TOKEN", "")
	viper.SetDefault("GITHUB_API_BASE_URL", "")

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.GithubAppID == "" {
		return nil, errors.New("GITHUB_APP_ID is a required configuration field")
	}
	if cfg.GithubAppPrivateKey == "" {
		return nil, errors.New("GITHUB_APP_PRIVATE_KEY is a required configuration field")
	}
	if cfg.GithubWebhookSecret == "" {
		return nil, errors.New("GITHUB_WEBHOOK_SECRET is a required configuration field")
	}
	if cfg.SyncInterval <= 0 {
		return nil, errors.New("SYNC_INTERVAL must be a positive duration")
	}
	if cfg.StalenessWindow < 0 {
		return nil, errors.New("STALENESS_WINDOW must not be negative")
	}

	return &cfg, nil
}
