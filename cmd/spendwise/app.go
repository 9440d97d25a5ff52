package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/spendwise/internal/api"
	"github.com/Veraticus/spendwise/internal/cache"
	"github.com/Veraticus/spendwise/internal/common"
	"github.com/Veraticus/spendwise/internal/config"
	"github.com/Veraticus/spendwise/internal/queries"
	"github.com/Veraticus/spendwise/internal/service"
	"github.com/Veraticus/spendwise/internal/session"
	"github.com/Veraticus/spendwise/internal/storage"
	"github.com/Veraticus/spendwise/internal/ui"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// notSignedInMessage is shown by commands that need a session.
const notSignedInMessage = "You are not signed in. Run: spendwise auth login"

// app wires the client stack shared by every command.
type app struct {
	cfg          *config.Config
	db           service.Storage
	session      *session.Store
	cache        *cache.Cache
	queries      *queries.Queries
	notifier     *ui.Notifier
	connectivity *ui.Connectivity
	logger       *slog.Logger
}

// newApp opens storage, restores the stored session and builds the query layer.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger := slog.Default()
	db, err := storage.Open(ctx, cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	store := session.New(ctx, db, session.WithLogger(logger.With("component", "session")))
	notifier := ui.NewNotifier()
	connectivity := ui.NewConnectivity(notifier)

	client := api.NewClient(cfg.APIURL, store,
		api.WithTimeout(cfg.APITimeout),
		api.WithRefreshCoalescing(cfg.CoalesceRefresh),
		api.WithConnectivityObserver(connectivity.Report),
		api.WithLogger(logger.With("component", "api")),
	)
	c := cache.New(
		cache.WithRetention(cfg.CacheRetention),
		cache.WithPersistence(db, cfg.CachePersistTTL),
		// request, refresh and retry
		cache.WithFetchTimeout(3*cfg.APITimeout),
		cache.WithLogger(logger.With("component", "cache")),
	)

	return &app{
		cfg:          cfg,
		db:           db,
		session:      store,
		cache:        c,
		queries:      queries.New(client, c, store),
		notifier:     notifier,
		connectivity: connectivity,
		logger:       logger,
	}, nil
}

// Close releases the cache timers and the database.
func (a *app) Close() {
	a.cache.Close()
	a.notifier.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Warn("Failed to close storage", "error", err)
	}
}

// requireSession fails fast when no user is signed in.
func (a *app) requireSession() error {
	if !a.session.State().IsAuthenticated {
		return common.NewUserError(notSignedInMessage, common.ErrNotAuthenticated)
	}
	return nil
}

// withApp runs fn with a fresh app, closing it afterwards.
func withApp(ctx context.Context, needSession bool, fn func(*app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if needSession {
		if err := a.requireSession(); err != nil {
			return err
		}
	}
	return fn(a)
}
