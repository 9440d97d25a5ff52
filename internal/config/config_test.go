package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spendwise/internal/common"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
	assert.Equal(t, 60*time.Second, cfg.CacheRetention)
	assert.Equal(t, 5*time.Minute, cfg.CachePersistTTL)
	assert.Equal(t, 1500*time.Millisecond, cfg.SplashMinimum)
	assert.False(t, cfg.CoalesceRefresh)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.NotEmpty(t, cfg.StoragePath)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("api.url", "https://api.spendwise.test/api")
	v.Set("api.coalesce_refresh", true)
	v.Set("ui.splash_min", "250ms")
	v.Set("storage.path", "$SPENDWISE_TEST_DIR/db.sqlite")
	t.Setenv("SPENDWISE_TEST_DIR", "/tmp/spendwise")

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "https://api.spendwise.test/api", cfg.APIURL)
	assert.True(t, cfg.CoalesceRefresh)
	assert.Equal(t, 250*time.Millisecond, cfg.SplashMinimum)
	assert.Equal(t, "/tmp/spendwise/db.sqlite", cfg.StoragePath)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			APIURL:      DefaultAPIURL,
			StoragePath: "/tmp/x.db",
			APITimeout:  time.Second,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing url", mutate: func(c *Config) { c.APIURL = "" }, want: common.ErrMissingConfig},
		{name: "relative url", mutate: func(c *Config) { c.APIURL = "/api" }, want: common.ErrInvalidConfig},
		{name: "missing storage", mutate: func(c *Config) { c.StoragePath = "" }, want: common.ErrMissingConfig},
		{name: "zero timeout", mutate: func(c *Config) { c.APITimeout = 0 }, want: common.ErrInvalidConfig},
		{name: "negative retention", mutate: func(c *Config) { c.CacheRetention = -time.Second }, want: common.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRequireMonoKey(t *testing.T) {
	cfg := &Config{}
	err := cfg.RequireMonoKey()
	require.ErrorIs(t, err, common.ErrMissingConfig)
	assert.Contains(t, common.UserMessage(err), "mono.public_key")

	cfg.MonoPublicKey = "test_pk_123"
	assert.NoError(t, cfg.RequireMonoKey())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("SPENDWISE_EXPAND", "value")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "data"), ExpandPath("~/data"))
	assert.Equal(t, "/x/value", ExpandPath("/x/$SPENDWISE_EXPAND"))
}

func TestDefaultStoragePathXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	assert.Equal(t, "/data/spendwise/spendwise.db", DefaultStoragePath())
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/etc/xdg")
	assert.Equal(t, "/etc/xdg/spendwise", ConfigDir())

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "spendwise"), ConfigDir())
}
