package ui

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPullBelowThresholdDoesNothing(t *testing.T) {
	calls := 0
	p := NewPullToRefresh(func(context.Context) error {
		calls++
		return nil
	}, nil)

	require.True(t, p.Start(100, 0))
	p.Move(159, 0)
	assert.Equal(t, 59, p.Distance())
	assert.Equal(t, PullHint, p.Indicator())

	require.NoError(t, p.End(context.Background()))
	assert.Zero(t, calls)
	assert.Equal(t, PullIdle, p.State())
	assert.Empty(t, p.Indicator())
}

func TestPullAtThresholdRefreshes(t *testing.T) {
	n := NewNotifier()
	defer n.Close()
	var during PullState
	var p *PullToRefresh
	p = NewPullToRefresh(func(context.Context) error {
		during = p.State()
		return nil
	}, n, WithPullMessages("Dashboard refreshed", "Failed to refresh dashboard"))

	require.True(t, p.Start(10, 0))
	p.Move(70, 0)
	assert.Equal(t, ReleaseHint, p.Indicator())

	require.NoError(t, p.End(context.Background()))
	assert.Equal(t, PullRefreshing, during)
	assert.Equal(t, PullIdle, p.State())

	toasts := n.Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, SeveritySuccess, toasts[0].Severity)
	assert.Equal(t, "Dashboard refreshed", toasts[0].Message)
}

func TestPullFailureToast(t *testing.T) {
	n := NewNotifier()
	defer n.Close()
	p := NewPullToRefresh(func(context.Context) error {
		return errors.New("offline")
	}, n)

	p.Start(0, 0)
	p.Move(500, 0)
	assert.Equal(t, DefaultPullMax, p.Distance())

	err := p.End(context.Background())
	require.Error(t, err)
	toasts := n.Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, SeverityError, toasts[0].Severity)
	assert.Equal(t, PullIdle, p.State())
}

func TestPullOnlyFromTop(t *testing.T) {
	p := NewPullToRefresh(func(context.Context) error { return nil }, nil)

	assert.False(t, p.Start(10, 3))
	assert.Equal(t, PullIdle, p.State())

	p.Start(10, 0)
	p.Move(5, 0)
	assert.Zero(t, p.Distance(), "upward drags clamp to zero")
	p.Move(80, 2)
	assert.Zero(t, p.Distance(), "moves after scrolling are ignored")
	assert.False(t, p.Release())
}

func TestPullIgnoresTouchesWhileRefreshing(t *testing.T) {
	release := make(chan struct{})
	p := NewPullToRefresh(func(context.Context) error {
		<-release
		return nil
	}, nil)

	p.Start(0, 0)
	p.Move(100, 0)
	require.True(t, p.Release())

	done := make(chan error, 1)
	go func() { done <- p.Refresh(context.Background()) }()

	assert.Eventually(t, func() bool { return p.Indicator() == RefreshingHint }, testTimeout, testTick)
	assert.False(t, p.Start(0, 0))
	assert.Equal(t, PullRefreshing, p.State())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, PullIdle, p.State())
}
