package ui

import (
	"context"
	"sync"
)

// PullState is the phase of a pull-to-refresh gesture.
type PullState int

// Pull-to-refresh phases.
const (
	PullIdle PullState = iota
	PullPulling
	PullReleasing
	PullRefreshing
)

func (s PullState) String() string {
	switch s {
	case PullIdle:
		return "idle"
	case PullPulling:
		return "pulling"
	case PullReleasing:
		return "releasing"
	case PullRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Pull distances, in the same units as the pointer coordinates.
const (
	DefaultPullMax       = 100
	DefaultPullThreshold = 60
)

// Indicator texts.
const (
	PullHint       = "Pull to refresh"
	ReleaseHint    = "Release to refresh"
	RefreshingHint = "Refreshing..."
)

// PullToRefresh tracks a drag from the top of a list and runs a refresh
// when it is released far enough.
type PullToRefresh struct {
	refresh   func(context.Context) error
	notifier  *Notifier
	observers observers[PullState]
	success   string
	failure   string
	state     PullState
	startY    int
	distance  int
	max       int
	threshold int
	mu        sync.Mutex
}

// PullOption configures a PullToRefresh.
type PullOption func(*PullToRefresh)

// WithPullLimits sets the maximum distance and the release threshold.
func WithPullLimits(maxDistance, threshold int) PullOption {
	return func(p *PullToRefresh) {
		p.max = maxDistance
		p.threshold = threshold
	}
}

// WithPullMessages sets the toasts shown after a refresh.
func WithPullMessages(success, failure string) PullOption {
	return func(p *PullToRefresh) {
		p.success = success
		p.failure = failure
	}
}

// NewPullToRefresh runs refresh on release. Outcomes are announced through
// notifier when it is set.
func NewPullToRefresh(refresh func(context.Context) error, notifier *Notifier, opts ...PullOption) *PullToRefresh {
	p := &PullToRefresh{
		refresh:   refresh,
		notifier:  notifier,
		max:       DefaultPullMax,
		threshold: DefaultPullThreshold,
		success:   "Refreshed",
		failure:   "Failed to refresh",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins tracking at y when the list is scrolled to the top. It
// reports whether tracking started.
func (p *PullToRefresh) Start(y, scrollTop int) bool {
	p.mu.Lock()
	if p.state == PullRefreshing || scrollTop != 0 {
		p.mu.Unlock()
		return false
	}
	p.startY = y
	p.distance = 0
	p.state = PullPulling
	p.mu.Unlock()

	p.observers.notify(PullPulling)
	return true
}

// Move updates the pull distance, clamped to [0, max].
func (p *PullToRefresh) Move(y, scrollTop int) {
	p.mu.Lock()
	if p.state != PullPulling || scrollTop != 0 {
		p.mu.Unlock()
		return
	}
	p.distance = min(max(y-p.startY, 0), p.max)
	p.mu.Unlock()

	p.observers.notify(PullPulling)
}

// Release ends the gesture. It reports whether the pull reached the
// threshold, in which case the state is refreshing and Refresh must follow.
func (p *PullToRefresh) Release() bool {
	p.mu.Lock()
	if p.state != PullPulling {
		p.mu.Unlock()
		return false
	}
	p.state = PullReleasing
	trigger := p.distance >= p.threshold
	if trigger {
		p.state = PullRefreshing
	} else {
		p.state = PullIdle
	}
	p.distance = 0
	p.startY = 0
	state := p.state
	p.mu.Unlock()

	p.observers.notify(state)
	return trigger
}

// Refresh runs the refresh function, announces the outcome and returns to idle.
func (p *PullToRefresh) Refresh(ctx context.Context) error {
	p.mu.Lock()
	p.state = PullRefreshing
	p.mu.Unlock()

	err := p.refresh(ctx)

	p.mu.Lock()
	p.state = PullIdle
	p.mu.Unlock()

	if p.notifier != nil {
		if err != nil {
			p.notifier.Error(p.failure)
		} else {
			p.notifier.Success(p.success)
		}
	}
	p.observers.notify(PullIdle)
	return err
}

// End releases the gesture and refreshes if the threshold was reached.
func (p *PullToRefresh) End(ctx context.Context) error {
	if !p.Release() {
		return nil
	}
	return p.Refresh(ctx)
}

// State returns the current phase.
func (p *PullToRefresh) State() PullState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Distance returns the clamped pull distance.
func (p *PullToRefresh) Distance() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.distance
}

// Indicator returns the hint to show above the list, or "" when idle.
func (p *PullToRefresh) Indicator() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.state == PullRefreshing:
		return RefreshingHint
	case p.state == PullPulling && p.distance >= p.threshold:
		return ReleaseHint
	case p.state == PullPulling && p.distance > 0:
		return PullHint
	default:
		return ""
	}
}

// Subscribe calls fn after every change.
func (p *PullToRefresh) Subscribe(fn func(PullState)) func() {
	return p.observers.add(fn)
}
