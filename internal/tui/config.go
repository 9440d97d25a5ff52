package tui

import (
	"log/slog"
	"time"

	"github.com/Veraticus/spendwise/internal/tui/themes"
	"github.com/Veraticus/spendwise/internal/ui"
)

// Config holds TUI configuration.
type Config struct {
	Theme         themes.Theme
	Logger        *slog.Logger
	Now           func() time.Time
	MonoKey       string
	LinkTimeout   time.Duration
	SplashMinimum time.Duration
	Width         int
	Height        int
	PullRowUnits  int
	MouseSupport  bool
	ShowHelp      bool
	OpenBrowser   bool
	AltScreen     bool
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Theme:         themes.Default,
		Logger:        slog.Default(),
		Now:           time.Now,
		LinkTimeout:   10 * time.Minute,
		SplashMinimum: ui.DefaultSplashMinimum,
		Width:         80,
		Height:        24,
		PullRowUnits:  10,
		MouseSupport:  true,
		ShowHelp:      false,
		OpenBrowser:   true,
		AltScreen:     true,
	}
}

// WithTheme sets the visual theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithLogger sets the logger used for background failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithClock replaces time.Now, which decides the dashboard month.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Now = now
	}
}

// WithSplashMinimum sets how long the splash progress bar takes to fill.
// It should match the gate's minimum.
func WithSplashMinimum(d time.Duration) Option {
	return func(c *Config) {
		c.SplashMinimum = d
	}
}

// WithMonoKey sets the Mono Connect public key used to link accounts.
func WithMonoKey(key string) Option {
	return func(c *Config) {
		c.MonoKey = key
	}
}

// WithLinkTimeout bounds how long the link flow waits for the widget.
func WithLinkTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.LinkTimeout = d
	}
}

// WithMouse toggles mouse support, which drives pull-to-refresh.
func WithMouse(enabled bool) Option {
	return func(c *Config) {
		c.MouseSupport = enabled
	}
}

// WithBrowser controls whether the link flow opens a browser itself.
func WithBrowser(enabled bool) Option {
	return func(c *Config) {
		c.OpenBrowser = enabled
	}
}

// WithAltScreen toggles the alternate screen buffer.
func WithAltScreen(enabled bool) Option {
	return func(c *Config) {
		c.AltScreen = enabled
	}
}
