package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/spendwise/internal/common"
)

// Defaults for every configuration key.
const (
	DefaultAPIURL        = "http://localhost:3000/api"
	DefaultAPITimeout    = 30 * time.Second
	DefaultRetention     = 60 * time.Second
	DefaultPersistTTL    = 5 * time.Minute
	DefaultSplashMinimum = 1500 * time.Millisecond
)

// Config holds the resolved client configuration.
type Config struct {
	APIURL          string
	MonoPublicKey   string
	StoragePath     string
	LogLevel        string
	LogFormat       string
	APITimeout      time.Duration
	CacheRetention  time.Duration
	CachePersistTTL time.Duration
	SplashMinimum   time.Duration
	CoalesceRefresh bool
}

// SetDefaults registers default values on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.url", DefaultAPIURL)
	v.SetDefault("api.timeout", DefaultAPITimeout)
	v.SetDefault("api.coalesce_refresh", false)
	v.SetDefault("mono.public_key", "")
	v.SetDefault("storage.path", DefaultStoragePath())
	v.SetDefault("cache.retention", DefaultRetention)
	v.SetDefault("cache.persist_ttl", DefaultPersistTTL)
	v.SetDefault("ui.splash_min", DefaultSplashMinimum)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// FromViper reads a Config out of viper and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		APIURL:          v.GetString("api.url"),
		APITimeout:      v.GetDuration("api.timeout"),
		CoalesceRefresh: v.GetBool("api.coalesce_refresh"),
		MonoPublicKey:   v.GetString("mono.public_key"),
		StoragePath:     ExpandPath(v.GetString("storage.path")),
		CacheRetention:  v.GetDuration("cache.retention"),
		CachePersistTTL: v.GetDuration("cache.persist_ttl"),
		SplashMinimum:   v.GetDuration("ui.splash_min"),
		LogLevel:        v.GetString("logging.level"),
		LogFormat:       v.GetString("logging.format"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("%w: api.url is required", common.ErrMissingConfig)
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: api.url %q is not an absolute URL", common.ErrInvalidConfig, c.APIURL)
	}
	if c.StoragePath == "" {
		return fmt.Errorf("%w: storage.path is required", common.ErrMissingConfig)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("%w: api.timeout must be positive", common.ErrInvalidConfig)
	}
	if c.CacheRetention < 0 || c.CachePersistTTL < 0 || c.SplashMinimum < 0 {
		return fmt.Errorf("%w: durations must not be negative", common.ErrInvalidConfig)
	}
	return nil
}

// RequireMonoKey reports whether the bank link flow can run.
func (c *Config) RequireMonoKey() error {
	if c.MonoPublicKey == "" {
		return common.NewUserError(
			"Mono public key is not configured; set mono.public_key or SPENDWISE_MONO_PUBLIC_KEY",
			common.ErrMissingConfig,
		)
	}
	return nil
}
