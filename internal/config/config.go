// Package config loads twitterhub settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	twitter "github.com/anatolykoptev/go-twitterhub"
)

// Transport names accepted in TWITTER_TRANSPORT.
const (
	TransportHTTP    = "http"
	TransportStealth = "stealth"
)

// Config holds all application configuration.
type Config struct {
	// Application credentials
	ConsumerKey    string
	ConsumerSecret string

	// User credentials, optional for read-only commands
	AccessToken  string
	AccessSecret string

	// Transport
	Transport string // "http" or "stealth" (default: http)
	Proxy     string

	// Polling
	PollInterval time.Duration

	// Logging
	LogLevel string

	// Metrics listen address, empty disables /metrics
	MetricsAddr string
}

// Load reads configuration from environment variables.
// It automatically loads .env file if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ConsumerKey:    getEnv("TWITTER_CONSUMER_KEY", ""),
		ConsumerSecret: getEnv("TWITTER_CONSUMER_SECRET", ""),
		AccessToken:    getEnv("TWITTER_ACCESS_TOKEN", ""),
		AccessSecret:   getEnv("TWITTER_ACCESS_SECRET", ""),
		Transport:      strings.ToLower(getEnv("TWITTER_TRANSPORT", TransportHTTP)),
		Proxy:          getEnv("TWITTER_PROXY", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MetricsAddr:    getEnv("METRICS_ADDR", ""),
	}

	// TWITTER_CREDENTIALS fills whatever the individual variables left empty.
	if raw := os.Getenv("TWITTER_CREDENTIALS"); raw != "" {
		acc, err := twitter.ParseAccount(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TWITTER_CREDENTIALS: %w", err)
		}
		setIfEmpty(&cfg.ConsumerKey, acc.ConsumerKey)
		setIfEmpty(&cfg.ConsumerSecret, acc.ConsumerSecret)
		if acc.User != nil {
			setIfEmpty(&cfg.AccessToken, acc.User.Token)
			setIfEmpty(&cfg.AccessSecret, acc.User.Secret)
		}
	}

	var err error
	cfg.PollInterval, err = time.ParseDuration(getEnv("POLL_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
	}

	return cfg, nil
}

// Validate checks that application credentials and settings are usable.
func (c *Config) Validate() error {
	if c.ConsumerKey == "" {
		return fmt.Errorf("TWITTER_CONSUMER_KEY is required")
	}
	if c.ConsumerSecret == "" {
		return fmt.Errorf("TWITTER_CONSUMER_SECRET is required")
	}
	switch c.Transport {
	case TransportHTTP, TransportStealth:
	default:
		return fmt.Errorf("invalid TWITTER_TRANSPORT: %s (must be 'http' or 'stealth')", c.Transport)
	}
	if c.PollInterval < twitter.MinPollInterval {
		return fmt.Errorf("POLL_INTERVAL must be at least %s", twitter.MinPollInterval)
	}
	return nil
}

// ValidateForUser checks configuration needed for user-context commands.
func (c *Config) ValidateForUser() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.AccessToken == "" {
		return fmt.Errorf("TWITTER_ACCESS_TOKEN is required for user commands")
	}
	if c.AccessSecret == "" {
		return fmt.Errorf("TWITTER_ACCESS_SECRET is required for user commands")
	}
	return nil
}

// HasUser reports whether user credentials are configured.
func (c *Config) HasUser() bool {
	return c.AccessToken != "" && c.AccessSecret != ""
}

// Account returns the configured credentials.
func (c *Config) Account() twitter.Account {
	acc := twitter.Account{ConsumerKey: c.ConsumerKey, ConsumerSecret: c.ConsumerSecret}
	if c.HasUser() {
		acc.User = &twitter.UserCredentials{Token: c.AccessToken, Secret: c.AccessSecret}
	}
	return acc
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
