package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	API struct {
		BaseURL         string  `yaml:"base_url"`
		APIKey          string  `yaml:"api_key"`
		TimeoutSeconds  int     `yaml:"timeout_seconds"`
		RatePerSecond   float64 `yaml:"rate_per_second"`
		Burst           int     `yaml:"burst"`
		CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
		MaxRetries      int     `yaml:"max_retries"`
	} `yaml:"api"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Feed struct {
		PageSize   int    `yaml:"page_size"`
		DebounceMS int    `yaml:"debounce_ms"`
		Timezone   string `yaml:"timezone"`
	} `yaml:"feed"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads the YAML config at path, expanding ${ENV_VAR} placeholders.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = 10
	}
	if c.API.RatePerSecond == 0 {
		c.API.RatePerSecond = 5
	}
	if c.API.Burst <= 0 {
		c.API.Burst = 10
	}
	if c.API.MaxRetries < 0 {
		c.API.MaxRetries = 0
	} else if c.API.MaxRetries == 0 {
		c.API.MaxRetries = 2
	}
	if c.Feed.PageSize <= 0 {
		c.Feed.PageSize = 20
	}
	if c.Feed.DebounceMS <= 0 {
		c.Feed.DebounceMS = 300
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks settings that have no sensible default.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("feed.timezone: %w", err)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Location returns the timezone used to group reservations by day.
func (c *Config) Location() (*time.Location, error) {
	if c.Feed.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Feed.Timezone)
}

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.API.CacheTTLSeconds) * time.Second
}

func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.Feed.DebounceMS) * time.Millisecond
}

func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
