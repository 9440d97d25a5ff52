// Package cache is the client-side entity cache. Entries are keyed by
// endpoint and arguments, labelled with tags, and marked stale when a tag
// they carry is invalidated so the next query refetches them.
package cache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Veraticus/spendwise/internal/service"
)

// Status is the fetch state of an entry.
type Status int

// Entry statuses.
const (
	StatusUninitialized Status = iota
	StatusPending
	StatusFulfilled
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFulfilled:
		return "fulfilled"
	case StatusRejected:
		return "rejected"
	default:
		return "uninitialized"
	}
}

// DefaultRetention is how long an unused entry survives.
const DefaultRetention = 60 * time.Second

// DefaultPersistTTL is how long a persisted payload stays usable.
const DefaultPersistTTL = 5 * time.Minute

// DefaultFetchTimeout bounds a shared fetch, which outlives the callers waiting on it.
const DefaultFetchTimeout = 2 * time.Minute

// Entry is a snapshot of one cached result.
type Entry struct {
	FulfilledAt time.Time
	Data        any
	Err         error
	LastArg     any
	Key         string
	Tags        []Tag
	Status      Status
	Subscribers int
	Stale       bool
}

// HasData reports whether the entry holds a payload.
func (e Entry) HasData() bool {
	return e.Data != nil
}

type entry struct {
	unusedSince time.Time
	fulfilledAt time.Time
	data        any
	err         error
	lastArg     any
	subs        map[int]func(Entry)
	tags        []Tag
	status      Status
	hasArg      bool
	stale       bool
	hydrated    bool
}

// Cache holds query results. It is safe for concurrent use.
type Cache struct {
	persist    service.ResponseCache
	logger     *slog.Logger
	now        func() time.Time
	entries    map[string]*entry
	byTag      map[Tag]map[string]struct{}
	byType     map[TagType]map[string]struct{}
	stopCh     chan struct{}
	flights    singleflight.Group
	retention  time.Duration
	persistTTL time.Duration
	fetchTTL   time.Duration
	nextSub    int
	generation uint64
	mu         sync.Mutex
	persistMu  sync.Mutex
	closeOnce  sync.Once
}

// Option configures a Cache.
type Option func(*Cache)

// WithRetention sets how long an entry without subscribers is kept.
func WithRetention(d time.Duration) Option {
	return func(c *Cache) {
		c.retention = d
	}
}

// WithPersistence stores fulfilled payloads in rc for ttl so a later
// process can show them before the network answers.
func WithPersistence(rc service.ResponseCache, ttl time.Duration) Option {
	return func(c *Cache) {
		c.persist = rc
		if ttl > 0 {
			c.persistTTL = ttl
		}
	}
}

// WithFetchTimeout bounds each fetch. Fetches are shared between callers,
// so a caller's cancellation stops only its own wait.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTTL = d
		}
	}
}

// WithLogger sets the cache's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a cache and starts its eviction loop.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]*entry),
		byTag:      make(map[Tag]map[string]struct{}),
		byType:     make(map[TagType]map[string]struct{}),
		stopCh:     make(chan struct{}),
		retention:  DefaultRetention,
		persistTTL: DefaultPersistTTL,
		fetchTTL:   DefaultFetchTimeout,
		logger:     slog.Default().With("component", "cache"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.cleanup()

	return c
}

// Get returns the payload stored under key.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.data == nil {
		return nil, false
	}
	return e.data, true
}

// Entry returns a snapshot of the entry stored under key.
func (c *Cache) Entry(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return e.snapshot(key), true
}

// Put stores value as a fulfilled, fresh result carrying tags.
func (c *Cache) Put(key string, value any, tags []Tag) {
	c.mu.Lock()
	e := c.ensure(key)
	e.data = value
	e.status = StatusFulfilled
	e.stale = false
	e.err = nil
	e.fulfilledAt = c.now()
	c.setTags(key, e, tags)
	notify := c.collect(key, e)
	c.mu.Unlock()

	notify()
}

// Invalidate marks every entry carrying a matching tag stale. A tag with
// an ID matches exactly; a tag without one matches its whole type.
// It returns the keys that were invalidated.
func (c *Cache) Invalidate(tags ...Tag) []string {
	c.mu.Lock()
	matched := make(map[string]struct{})
	for _, t := range tags {
		var keys map[string]struct{}
		if t.ID == "" {
			keys = c.byType[t.Type]
		} else {
			keys = c.byTag[t]
		}
		for k := range keys {
			matched[k] = struct{}{}
		}
	}

	keys := make([]string, 0, len(matched))
	for k := range matched {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	notifies := make([]func(), 0, len(keys))
	for _, k := range keys {
		e := c.entries[k]
		e.stale = true
		notifies = append(notifies, c.collect(k, e))
	}
	c.mu.Unlock()

	if len(keys) > 0 {
		c.logger.Debug("Invalidated cache entries", "tags", tagStrings(tags), "keys", keys)
	}
	if c.persist != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		for _, k := range keys {
			if err := c.persist.RemoveResponse(ctx, k); err != nil {
				c.logger.Warn("Failed to drop persisted response", "key", k, "error", err)
			}
		}
		cancel()
	}
	for _, n := range notifies {
		n()
	}
	return keys
}

// Subscribe registers fn to receive every change to the entry under key,
// creating the entry if needed. Unsubscribing the last observer starts the
// retention clock.
func (c *Cache) Subscribe(key string, fn func(Entry)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.ensure(key)
	id := c.nextSub
	c.nextSub++
	e.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if cur, ok := c.entries[key]; ok && cur == e {
				delete(e.subs, id)
				if len(e.subs) == 0 {
					e.unusedSince = c.now()
				}
			}
		})
	}
}

// Len reports the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset drops every entry and any persisted payloads. Fetches still in
// flight when Reset runs are discarded when they complete.
func (c *Cache) Reset(ctx context.Context) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	c.generation++
	c.entries = make(map[string]*entry)
	c.byTag = make(map[Tag]map[string]struct{})
	c.byType = make(map[TagType]map[string]struct{})
	c.mu.Unlock()

	if c.persist != nil {
		return c.persist.ClearResponses(ctx)
	}
	return nil
}

// Close stops the eviction loop.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCh)
	})
}

// cleanup periodically evicts unused entries and expired persisted payloads.
func (c *Cache) cleanup() {
	interval := c.retention / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
			if c.persist != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if n, err := c.persist.CleanupExpired(ctx); err != nil {
					c.logger.Warn("Failed to clean persisted responses", "error", err)
				} else if n > 0 {
					c.logger.Debug("Removed expired persisted responses", "count", n)
				}
				cancel()
			}
		}
	}
}

// sweep evicts entries that have had no subscribers for the retention period.
func (c *Cache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0
	for key, e := range c.entries {
		if len(e.subs) > 0 || e.status == StatusPending {
			continue
		}
		if now.Sub(e.unusedSince) >= c.retention {
			c.setTags(key, e, nil)
			delete(c.entries, key)
			evicted++
		}
	}
	return evicted
}

// ensure must be called with mu held.
func (c *Cache) ensure(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{
			subs:        make(map[int]func(Entry)),
			unusedSince: c.now(),
		}
		c.entries[key] = e
	}
	return e
}

// setTags replaces the tags of key in the reverse indexes. mu must be held.
func (c *Cache) setTags(key string, e *entry, tags []Tag) {
	for _, t := range e.tags {
		if keys, ok := c.byTag[t]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.byTag, t)
			}
		}
		if keys, ok := c.byType[t.Type]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.byType, t.Type)
			}
		}
	}

	e.tags = dedupeTags(tags)
	for _, t := range e.tags {
		if c.byTag[t] == nil {
			c.byTag[t] = make(map[string]struct{})
		}
		c.byTag[t][key] = struct{}{}
		if c.byType[t.Type] == nil {
			c.byType[t.Type] = make(map[string]struct{})
		}
		c.byType[t.Type][key] = struct{}{}
	}
}

// collect snapshots an entry and its observers so they can be notified
// after mu is released. mu must be held.
func (c *Cache) collect(key string, e *entry) func() {
	if len(e.subs) == 0 {
		if e.status != StatusPending {
			e.unusedSince = c.now()
		}
		return func() {}
	}

	snap := e.snapshot(key)
	ids := make([]int, 0, len(e.subs))
	for id := range e.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Entry), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, e.subs[id])
	}

	return func() {
		for _, fn := range fns {
			fn(snap)
		}
	}
}

func (e *entry) snapshot(key string) Entry {
	return Entry{
		Key:         key,
		Data:        e.data,
		Tags:        append([]Tag(nil), e.tags...),
		Status:      e.status,
		Stale:       e.stale,
		Err:         e.err,
		LastArg:     e.lastArg,
		FulfilledAt: e.fulfilledAt,
		Subscribers: len(e.subs),
	}
}

func dedupeTags(tags []Tag) []Tag {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[Tag]struct{}, len(tags))
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
