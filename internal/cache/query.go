package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// Endpoint describes a cached read.
type Endpoint[A, R any] struct {
	// Fetch performs the request.
	Fetch func(ctx context.Context, arg A) (R, error)
	// Provides computes the tags of a result. On failure result is the zero value.
	Provides func(result R, err error, arg A) []Tag
	// SerializeArgs maps an argument to the part that identifies the entry.
	SerializeArgs func(arg A) any
	// Merge folds an incoming result into the cached one.
	Merge func(current, incoming R, arg A) R
	// ForceRefetch reports whether arg must be fetched even when the entry is fresh.
	ForceRefetch func(arg, last A) bool
	Name         string
}

// Key returns the cache key for arg.
func (ep Endpoint[A, R]) Key(arg A) string {
	var v any = arg
	if ep.SerializeArgs != nil {
		v = ep.SerializeArgs(arg)
	}
	return ep.Name + ":" + encodeArg(v)
}

// Mutation describes a write and the tags it invalidates.
type Mutation[A, R any] struct {
	Run         func(ctx context.Context, arg A) (R, error)
	Invalidates func(arg A) []Tag
	Name        string
}

type queryOptions struct {
	refetch bool
}

// QueryOption adjusts a single Query call.
type QueryOption func(*queryOptions)

// WithRefetch fetches even when the cached result is fresh.
func WithRefetch() QueryOption {
	return func(o *queryOptions) {
		o.refetch = true
	}
}

// Query returns the cached result for arg, fetching when the entry is
// missing, stale, rejected, forced or ForceRefetch asks for it. Concurrent
// calls with the same argument share one fetch, which is not canceled by
// any one caller; a caller whose ctx ends stops waiting with ctx.Err(). On
// failure the previous result is returned alongside the error.
func Query[A, R any](ctx context.Context, c *Cache, ep Endpoint[A, R], arg A, opts ...QueryOption) (R, error) {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}

	key := ep.Key(arg)
	if c.persist != nil {
		hydrate[R](ctx, c, key)
	}

	c.mu.Lock()
	e := c.ensure(key)
	if !o.refetch && !needsFetch(ep, e, arg) {
		data, _ := e.data.(R)
		if len(e.subs) == 0 {
			e.unusedSince = c.now()
		}
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	flightKey := ep.Name + ":" + encodeArg(arg)
	if o.refetch {
		flightKey += ":refetch"
	}
	ch := c.flights.DoChan(flightKey, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTTL)
		defer cancel()
		return fetch(fetchCtx, c, ep, key, arg)
	})
	select {
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	case res := <-ch:
		data, _ := res.Val.(R)
		return data, res.Err
	}
}

func needsFetch[A, R any](ep Endpoint[A, R], e *entry, arg A) bool {
	if e.status != StatusFulfilled || e.stale {
		return true
	}
	if ep.ForceRefetch != nil && e.hasArg {
		if last, ok := e.lastArg.(A); ok && ep.ForceRefetch(arg, last) {
			return true
		}
	}
	return false
}

func fetch[A, R any](ctx context.Context, c *Cache, ep Endpoint[A, R], key string, arg A) (any, error) {
	c.mu.Lock()
	gen := c.generation
	e := c.ensure(key)
	e.status = StatusPending
	pending := c.collect(key, e)
	c.mu.Unlock()
	pending()

	result, err := ep.Fetch(ctx, arg)

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		c.logger.Debug("Discarding result fetched before reset", "endpoint", ep.Name)
		if err != nil {
			var zero R
			return zero, err
		}
		return result, nil
	}
	e = c.ensure(key)
	if err != nil {
		e.status = StatusRejected
		e.err = err
		if ep.Provides != nil {
			var zero R
			c.setTags(key, e, append(e.tags, ep.Provides(zero, err, arg)...))
		}
		prev, _ := e.data.(R)
		notify := c.collect(key, e)
		c.mu.Unlock()

		notify()
		c.logger.Debug("Query failed", "endpoint", ep.Name, "error", err)
		return prev, err
	}

	merged := result
	if current, ok := e.data.(R); ok && ep.Merge != nil {
		merged = ep.Merge(current, result, arg)
	}
	e.data = merged
	e.status = StatusFulfilled
	e.stale = false
	e.err = nil
	e.lastArg = arg
	e.hasArg = true
	e.fulfilledAt = c.now()
	var tags []Tag
	if ep.Provides != nil {
		tags = ep.Provides(merged, nil, arg)
	}
	c.setTags(key, e, tags)
	notify := c.collect(key, e)
	c.mu.Unlock()

	notify()
	c.store(ctx, gen, key, merged, tags)
	return merged, nil
}

// hydrate loads a persisted payload into an uninitialized entry as a
// fulfilled but stale result.
func hydrate[R any](ctx context.Context, c *Cache, key string) {
	c.mu.Lock()
	gen := c.generation
	e := c.ensure(key)
	if e.hydrated || e.status != StatusUninitialized {
		c.mu.Unlock()
		return
	}
	e.hydrated = true
	c.mu.Unlock()

	resp, err := c.persist.GetResponse(ctx, key)
	if err != nil {
		return
	}

	var data R
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		c.logger.Warn("Discarding unreadable persisted response", "key", key, "error", err)
		return
	}
	tags := make([]Tag, 0, len(resp.Tags))
	for _, s := range resp.Tags {
		if t, err := ParseTag(s); err == nil {
			tags = append(tags, t)
		}
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	e = c.ensure(key)
	if e.status != StatusUninitialized {
		c.mu.Unlock()
		return
	}
	e.data = data
	e.status = StatusFulfilled
	e.stale = true
	e.fulfilledAt = resp.StoredAt
	c.setTags(key, e, tags)
	notify := c.collect(key, e)
	c.mu.Unlock()

	notify()
}

// store persists data unless the cache was reset after gen.
func (c *Cache) store(ctx context.Context, gen uint64, key string, data any, tags []Tag) {
	if c.persist == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.Warn("Failed to encode response for persistence", "key", key, "error", err)
		return
	}
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	c.mu.Lock()
	current := c.generation
	c.mu.Unlock()
	if current != gen {
		return
	}
	if err := c.persist.SetResponse(ctx, key, raw, tagStrings(tags), c.persistTTL); err != nil {
		c.logger.Warn("Failed to persist response", "key", key, "error", err)
	}
}

// Mutate runs m and then invalidates its tags, whether the call succeeded
// or failed. A cancelled call invalidates nothing.
func Mutate[A, R any](ctx context.Context, c *Cache, m Mutation[A, R], arg A) (R, error) {
	result, err := m.Run(ctx, arg)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return result, err
	}
	if m.Invalidates != nil {
		c.Invalidate(m.Invalidates(arg)...)
	}
	return result, err
}

// Peek returns the typed payload stored for arg without fetching.
func Peek[A, R any](c *Cache, ep Endpoint[A, R], arg A) (R, bool) {
	v, ok := c.Get(ep.Key(arg))
	if !ok {
		var zero R
		return zero, false
	}
	r, ok := v.(R)
	return r, ok
}

// Watch subscribes fn to the entry for arg, runs an initial Query and
// refetches in the background whenever the entry is invalidated.
func Watch[A, R any](ctx context.Context, c *Cache, ep Endpoint[A, R], arg A, fn func(Entry)) func() {
	key := ep.Key(arg)
	// stale is set while a refetch for the current invalidation is owed or running.
	var stale atomic.Bool
	stale.Store(true)
	unsubscribe := c.Subscribe(key, func(e Entry) {
		if fn != nil {
			fn(e)
		}
		if !e.Stale {
			stale.Store(false)
			return
		}
		if e.Status != StatusPending && ctx.Err() == nil && stale.CompareAndSwap(false, true) {
			go func() { _, _ = Query(ctx, c, ep, arg) }()
		}
	})
	go func() { _, _ = Query(ctx, c, ep, arg) }()
	return unsubscribe
}

func encodeArg(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
