// Package config resolves spendwise configuration from flags, environment,
// config file and defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const appName = "spendwise"

// ExpandPath expands a leading ~ and $VAR references. A path whose home
// directory cannot be resolved keeps its tilde.
func ExpandPath(path string) string {
	switch {
	case path == "":
		return ""
	case path == "~", strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = home + strings.TrimPrefix(path, "~")
		}
	}
	return os.ExpandEnv(path)
}

// ConfigDir is where config.yaml is looked up: $XDG_CONFIG_HOME/spendwise
// or ~/.config/spendwise.
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", "~/.config")
}

// DataDir holds the database and generated certificates: $XDG_DATA_HOME/spendwise
// or ~/.local/share/spendwise.
func DataDir() string {
	return xdgDir("XDG_DATA_HOME", "~/.local/share")
}

// DefaultStoragePath returns the database location under DataDir.
func DefaultStoragePath() string {
	return filepath.Join(DataDir(), appName+".db")
}

func xdgDir(env, fallback string) string {
	base := os.Getenv(env)
	if base == "" {
		base = ExpandPath(fallback)
	}
	return filepath.Join(base, appName)
}
