// Package ui holds the view-independent state machines behind the terminal
// interface: the splash and auth gate, pull-to-refresh, toasts and the
// offline indicator.
package ui

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/spendwise/internal/session"
)

// GateState is the phase of application start-up.
type GateState int

// Gate phases.
const (
	GateSplashing GateState = iota
	GateCheckingAuth
	GateAuthenticated
	GateUnauthenticated
)

func (s GateState) String() string {
	switch s {
	case GateSplashing:
		return "splashing"
	case GateCheckingAuth:
		return "checking-auth"
	case GateAuthenticated:
		return "authenticated"
	case GateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Resolved reports whether start-up is over.
func (s GateState) Resolved() bool {
	return s == GateAuthenticated || s == GateUnauthenticated
}

// DefaultSplashMinimum is how long the splash stays up at the least.
const DefaultSplashMinimum = 1500 * time.Millisecond

// Landing routes.
const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// Gate holds the splash screen for a minimum time, then follows the token
// store's loading and authenticated flags.
type Gate struct {
	store       *session.Store
	check       func(context.Context) error
	logger      *slog.Logger
	timer       *time.Timer
	unsubscribe func()
	observers   observers[GateState]
	minimum     time.Duration
	state       GateState
	mu          sync.Mutex
	started     bool
	splashDone  bool
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithSplashMinimum overrides DefaultSplashMinimum.
func WithSplashMinimum(d time.Duration) GateOption {
	return func(g *Gate) {
		g.minimum = d
	}
}

// WithGateLogger sets the logger.
func WithGateLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// NewGate creates a gate over store. check restores the session; it runs
// once when the gate starts and must end the store's loading phase.
func NewGate(store *session.Store, check func(context.Context) error, opts ...GateOption) *Gate {
	g := &Gate{
		store:   store,
		check:   check,
		minimum: DefaultSplashMinimum,
		logger:  slog.Default().With("component", "gate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start begins the splash timer and the auth check. Calling it again does nothing.
func (g *Gate) Start(ctx context.Context) {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	g.unsubscribe = g.store.Subscribe(func(session.State) { g.sync() })
	g.timer = time.AfterFunc(g.minimum, func() {
		g.mu.Lock()
		g.splashDone = true
		g.mu.Unlock()
		g.sync()
	})
	g.mu.Unlock()

	if g.check != nil {
		go func() {
			if err := g.check(ctx); err != nil {
				g.logger.Debug("Auth check finished with error", "error", err)
			}
			// A check that forgot to end loading must not hold the gate forever.
			if g.store.State().IsLoading {
				g.store.SetLoading(false)
			}
		}()
	}
}

// Stop releases the timer and the store subscription.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timer != nil {
		g.timer.Stop()
	}
	if g.unsubscribe != nil {
		g.unsubscribe()
		g.unsubscribe = nil
	}
}

func (g *Gate) sync() {
	st := g.store.State()

	g.mu.Lock()
	if !g.splashDone {
		g.mu.Unlock()
		return
	}
	next := GateUnauthenticated
	switch {
	case st.IsLoading:
		next = GateCheckingAuth
	case st.IsAuthenticated:
		next = GateAuthenticated
	}
	if next == g.state {
		g.mu.Unlock()
		return
	}
	prev := g.state
	g.state = next
	g.mu.Unlock()

	g.logger.Debug("Gate transition", "from", prev, "to", next)
	g.observers.notify(next)
}

// State returns the current phase.
func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Subscribe calls fn after every transition.
func (g *Gate) Subscribe(fn func(GateState)) func() {
	return g.observers.add(fn)
}

// Wait blocks until the gate is resolved or ctx ends.
func (g *Gate) Wait(ctx context.Context) (GateState, error) {
	ch := make(chan GateState, 1)
	unsubscribe := g.Subscribe(func(s GateState) {
		if s.Resolved() {
			select {
			case ch <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	if s := g.State(); s.Resolved() {
		return s, nil
	}
	select {
	case s := <-ch:
		return s, nil
	case <-ctx.Done():
		return g.State(), ctx.Err()
	}
}

// RouteDecision is the outcome of a navigation check.
type RouteDecision struct {
	// Redirect is the path to go to instead, or "" when the route is allowed.
	Redirect string
	// From is remembered on a login redirect so the user can come back.
	From string
	// Pending is set while the gate is not resolved; show the splash.
	Pending bool
}

// Allowed reports whether the requested route may be shown.
func (d RouteDecision) Allowed() bool {
	return !d.Pending && d.Redirect == ""
}

// Route decides whether path may be shown. Protected routes send signed-out
// users to the login screen; public-only routes send signed-in users back to
// from, or to the dashboard.
func (g *Gate) Route(path string, requireAuth bool, from string) RouteDecision {
	state := g.State()
	switch {
	case !state.Resolved():
		return RouteDecision{Pending: true}
	case requireAuth && state != GateAuthenticated:
		return RouteDecision{Redirect: LoginPath, From: path}
	case !requireAuth && state == GateAuthenticated:
		if from == "" {
			from = DashboardPath
		}
		return RouteDecision{Redirect: from}
	default:
		return RouteDecision{}
	}
}
