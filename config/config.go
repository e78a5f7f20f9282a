// Package config loads client settings from defaults, an optional file and IJEUWA_* env vars.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every env key: api.base_url is IJEUWA_API_BASE_URL.
const EnvPrefix = "IJEUWA"

type API struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is requests per second, 0 disables throttling.
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

type Query struct {
	Shards int `mapstructure:"shards"`
	// Capacity bounds unmounted entries, 0 means unbounded.
	Capacity   int           `mapstructure:"capacity"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

type Log struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type Stub struct {
	Addr   string `mapstructure:"addr"`
	Secret string `mapstructure:"secret"`
}

// Config is the full client configuration.
type Config struct {
	API   API   `mapstructure:"api"`
	Query Query `mapstructure:"query"`
	Log   Log   `mapstructure:"log"`
	Stub  Stub  `mapstructure:"stub"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:5000")
	v.SetDefault("api.timeout", 0)
	v.SetDefault("api.rate_limit", 0)
	v.SetDefault("api.burst", 1)
	v.SetDefault("query.shards", 16)
	v.SetDefault("query.capacity", 0)
	v.SetDefault("query.stale_after", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("stub.addr", "127.0.0.1:5000")
	v.SetDefault("stub.secret", "dev-secret")
}

// Load reads path (if not empty) over the defaults, applies env overrides and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return errors.Wrapf(err, "invalid api.base_url %q", c.API.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("api.base_url %q must be http or https", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return errors.New("api.timeout must not be negative")
	}
	if c.API.RateLimit < 0 {
		return errors.New("api.rate_limit must not be negative")
	}
	if c.API.RateLimit > 0 && c.API.Burst < 1 {
		return errors.New("api.burst must be at least 1 when api.rate_limit is set")
	}
	if c.Query.Shards < 1 {
		return errors.New("query.shards must be at least 1")
	}
	if c.Query.Capacity < 0 {
		return errors.New("query.capacity must not be negative")
	}
	if c.Query.StaleAfter < 0 {
		return errors.New("query.stale_after must not be negative")
	}
	return nil
}
