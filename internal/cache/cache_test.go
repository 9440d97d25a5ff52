package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spendwise/internal/testutil"
)

type page struct {
	Items []string `json:"items"`
	Page  int      `json:"page"`
}

type listArg struct {
	Filter string `json:"filter"`
	Page   int    `json:"page"`
}

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	c := New(opts...)
	t.Cleanup(c.Close)
	return c
}

func countingEndpoint(name string, calls *atomic.Int32, tags ...Tag) Endpoint[string, string] {
	return Endpoint[string, string]{
		Name: name,
		Fetch: func(_ context.Context, arg string) (string, error) {
			n := calls.Add(1)
			return arg + "-" + string(rune('0'+n)), nil
		},
		Provides: func(string, error, string) []Tag { return tags },
	}
}

func TestQueryCachesUntilInvalidated(t *testing.T) {
	c := newTestCache(t)
	var calls atomic.Int32
	ep := countingEndpoint("getAccounts", &calls, ListTag(TagAccounts), IDTag(TagAccounts, "acc-1"))
	ctx := context.Background()

	v, err := Query(ctx, c, ep, "a")
	require.NoError(t, err)
	assert.Equal(t, "a-1", v)

	v, err = Query(ctx, c, ep, "a")
	require.NoError(t, err)
	assert.Equal(t, "a-1", v)
	assert.Equal(t, int32(1), calls.Load())

	keys := c.Invalidate(IDTag(TagAccounts, "acc-1"))
	assert.Equal(t, []string{ep.Key("a")}, keys)

	entry, ok := c.Entry(ep.Key("a"))
	require.True(t, ok)
	assert.True(t, entry.Stale)
	assert.Equal(t, "a-1", entry.Data)

	v, err = Query(ctx, c, ep, "a")
	require.NoError(t, err)
	assert.Equal(t, "a-2", v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestInvalidateMatching(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	var n atomic.Int32

	accounts := countingEndpoint("getAccounts", &n, ListTag(TagAccounts), IDTag(TagAccounts, "a1"), IDTag(TagAccounts, "a2"))
	txns := countingEndpoint("getTransactions", &n, ListTag(TagTransactions), IDTag(TagTransactions, "t1"))
	txn := countingEndpoint("getTransaction", &n, IDTag(TagTransactions, "t9"))
	user := countingEndpoint("getCurrentUser", &n, TypeTag(TagUser))

	for _, q := range []Endpoint[string, string]{accounts, txns, txn, user} {
		_, err := Query(ctx, c, q, "x")
		require.NoError(t, err)
	}

	tests := []struct {
		name string
		tags []Tag
		want []string
	}{
		{name: "exact id", tags: []Tag{IDTag(TagAccounts, "a2")}, want: []string{accounts.Key("x")}},
		{name: "list sentinel", tags: []Tag{ListTag(TagTransactions)}, want: []string{txns.Key("x")}},
		{name: "type wide", tags: []Tag{TypeTag(TagTransactions)}, want: []string{txn.Key("x"), txns.Key("x")}},
		{name: "unknown id", tags: []Tag{IDTag(TagAccounts, "zz")}, want: []string{}},
		{name: "type tag", tags: []Tag{TypeTag(TagUser)}, want: []string{user.Key("x")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Invalidate(tt.tags...)
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestQueryMergeAndForceRefetch(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	var calls atomic.Int32

	ep := Endpoint[listArg, page]{
		Name: "list",
		Fetch: func(_ context.Context, arg listArg) (page, error) {
			calls.Add(1)
			return page{Items: []string{arg.Filter + "-p" + string(rune('0'+arg.Page))}, Page: arg.Page}, nil
		},
		SerializeArgs: func(arg listArg) any { return arg.Filter },
		Merge: func(current, incoming page, arg listArg) page {
			if arg.Page == 1 {
				return incoming
			}
			current.Items = append(current.Items, incoming.Items...)
			current.Page = incoming.Page
			return current
		},
		ForceRefetch: func(arg, last listArg) bool { return arg.Page != last.Page },
	}

	p, err := Query(ctx, c, ep, listArg{Filter: "food", Page: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"food-p1"}, p.Items)

	p, err = Query(ctx, c, ep, listArg{Filter: "food", Page: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"food-p1", "food-p2"}, p.Items)

	// Same page again is served from the cache.
	_, err = Query(ctx, c, ep, listArg{Filter: "food", Page: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	other, err := Query(ctx, c, ep, listArg{Filter: "rent", Page: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"rent-p1"}, other.Items)

	p, err = Query(ctx, c, ep, listArg{Filter: "food", Page: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"food-p1"}, p.Items)
}

func TestQueryErrorKeepsPreviousData(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	fail := errors.New("network down")
	var failing atomic.Bool

	ep := Endpoint[string, string]{
		Name: "me",
		Fetch: func(context.Context, string) (string, error) {
			if failing.Load() {
				return "", fail
			}
			return "ada", nil
		},
		Provides: func(_ string, err error, _ string) []Tag {
			if err != nil {
				return []Tag{TypeTag(TagUser)}
			}
			return []Tag{TypeTag(TagUser)}
		},
	}

	_, err := Query(ctx, c, ep, "")
	require.NoError(t, err)

	failing.Store(true)
	v, err := Query(ctx, c, ep, "", WithRefetch())
	require.ErrorIs(t, err, fail)
	assert.Equal(t, "ada", v)

	entry, _ := c.Entry(ep.Key(""))
	assert.Equal(t, StatusRejected, entry.Status)
	assert.ErrorIs(t, entry.Err, fail)
	assert.Equal(t, "ada", entry.Data)
}

func TestQueryDeduplicatesConcurrentFetches(t *testing.T) {
	c := newTestCache(t)
	release := make(chan struct{})
	var calls atomic.Int32

	ep := Endpoint[string, string]{
		Name: "slow",
		Fetch: func(context.Context, string) (string, error) {
			calls.Add(1)
			<-release
			return "done", nil
		},
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Query(context.Background(), c, ep, "k")
			assert.NoError(t, err)
			assert.Equal(t, "done", v)
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestMutateInvalidatesOnSuccessAndFailure(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	var calls atomic.Int32
	ep := countingEndpoint("getAccounts", &calls, ListTag(TagAccounts))
	_, _ = Query(ctx, c, ep, "")

	unlink := Mutation[string, string]{
		Name: "unlinkAccount",
		Run: func(_ context.Context, id string) (string, error) {
			if id == "bad" {
				return "", errors.New("404")
			}
			return "ok", nil
		},
		Invalidates: func(string) []Tag { return []Tag{ListTag(TagAccounts)} },
	}

	_, err := Mutate(ctx, c, unlink, "acc-1")
	require.NoError(t, err)
	entry, _ := c.Entry(ep.Key(""))
	assert.True(t, entry.Stale)

	_, _ = Query(ctx, c, ep, "")
	_, err = Mutate(ctx, c, unlink, "bad")
	require.Error(t, err)
	entry, _ = c.Entry(ep.Key(""))
	assert.True(t, entry.Stale)

	_, _ = Query(ctx, c, ep, "")
	cancelled := Mutation[string, string]{
		Run:         func(context.Context, string) (string, error) { return "", context.Canceled },
		Invalidates: unlink.Invalidates,
	}
	_, err = Mutate(ctx, c, cancelled, "x")
	require.ErrorIs(t, err, context.Canceled)
	entry, _ = c.Entry(ep.Key(""))
	assert.False(t, entry.Stale)
}

func TestSubscribeAndRetention(t *testing.T) {
	c := newTestCache(t, WithRetention(time.Minute))
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.mu.Lock()
	c.now = func() time.Time { return now }
	c.mu.Unlock()

	var seen []Entry
	var mu sync.Mutex
	unsubscribe := c.Subscribe("k", func(e Entry) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e)
	})

	c.Put("k", "v", []Tag{TypeTag(TagAI)})
	c.Invalidate(TypeTag(TagAI))

	mu.Lock()
	require.Len(t, seen, 2)
	assert.False(t, seen[0].Stale)
	assert.True(t, seen[1].Stale)
	assert.Equal(t, 1, seen[0].Subscribers)
	mu.Unlock()

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 0, c.sweep(), "subscribed entries are never evicted")

	unsubscribe()
	unsubscribe()
	now = now.Add(59 * time.Second)
	assert.Equal(t, 0, c.sweep())
	now = now.Add(time.Second)
	assert.Equal(t, 1, c.sweep())

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Empty(t, c.Invalidate(TypeTag(TagAI)), "evicted entries leave the tag index")
}

func TestWatchRefetchesOnInvalidate(t *testing.T) {
	c := newTestCache(t)
	var calls atomic.Int32
	ep := countingEndpoint("getAdvice", &calls, TypeTag(TagAI))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	unsubscribe := Watch(ctx, c, ep, "x", nil)
	defer unsubscribe()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		e, _ := c.Entry(ep.Key("x"))
		return e.Status == StatusFulfilled
	}, time.Second, 5*time.Millisecond)

	c.Invalidate(TypeTag(TagAI))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		v, ok := Peek(c, ep, "x")
		return ok && v == "x-2"
	}, time.Second, 5*time.Millisecond)
}

func TestPersistenceHydratesStaleEntries(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	fail := errors.New("offline")
	var offline atomic.Bool

	ep := Endpoint[string, page]{
		Name: "list",
		Fetch: func(context.Context, string) (page, error) {
			if offline.Load() {
				return page{}, fail
			}
			return page{Items: []string{"t1", "t2"}, Page: 1}, nil
		},
		Provides: func(page, error, string) []Tag { return []Tag{ListTag(TagTransactions)} },
	}

	first := newTestCache(t, WithPersistence(db, time.Minute))
	_, err := Query(ctx, first, ep, "")
	require.NoError(t, err)

	// A new process starts offline and still sees the persisted list.
	offline.Store(true)
	second := newTestCache(t, WithPersistence(db, time.Minute))
	p, err := Query(ctx, second, ep, "")
	require.ErrorIs(t, err, fail)
	assert.Equal(t, []string{"t1", "t2"}, p.Items)

	entry, ok := second.Entry(ep.Key(""))
	require.True(t, ok)
	assert.Equal(t, StatusRejected, entry.Status)
	assert.Contains(t, entry.Tags, ListTag(TagTransactions))

	require.NoError(t, second.Reset(ctx))
	third := newTestCache(t, WithPersistence(db, time.Minute))
	p, err = Query(ctx, third, ep, "")
	require.ErrorIs(t, err, fail)
	assert.Empty(t, p.Items)
}

func TestResetDiscardsInFlightFetch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})

	ep := Endpoint[string, string]{
		Name: "getAccounts",
		Fetch: func(context.Context, string) (string, error) {
			close(started)
			<-release
			return "previous-user-data", nil
		},
		Provides: func(string, error, string) []Tag { return []Tag{ListTag(TagAccounts)} },
	}
	c := newTestCache(t, WithPersistence(db, time.Minute))

	done := make(chan error, 1)
	go func() {
		_, err := Query(ctx, c, ep, "")
		done <- err
	}()

	<-started
	require.NoError(t, c.Reset(ctx))
	close(release)
	require.NoError(t, <-done)

	_, ok := c.Get(ep.Key(""))
	assert.False(t, ok, "a result fetched before Reset must not come back")
	assert.Zero(t, c.Len())
	assert.Empty(t, c.Invalidate(ListTag(TagAccounts)))

	_, err := db.GetResponse(ctx, ep.Key(""))
	assert.Error(t, err, "nothing is persisted for the previous session")
}

func TestCanceledCallerDoesNotCancelSharedFetch(t *testing.T) {
	c := newTestCache(t)
	started := make(chan struct{})
	release := make(chan struct{})
	fetchErr := make(chan error, 1)

	ep := Endpoint[string, string]{
		Name: "getAdvice",
		Fetch: func(ctx context.Context, arg string) (string, error) {
			close(started)
			<-release
			fetchErr <- ctx.Err()
			return arg, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Query(ctx, c, ep, "x")
		done <- err
	}()

	<-started
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(release)
	require.NoError(t, <-fetchErr)
	require.Eventually(t, func() bool {
		e, _ := c.Entry(ep.Key("x"))
		return e.Status == StatusFulfilled
	}, time.Second, 5*time.Millisecond)

	v, ok := Peek(c, ep, "x")
	require.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestTagString(t *testing.T) {
	for _, tag := range []Tag{TypeTag(TagUser), ListTag(TagAccounts), IDTag(TagTransactions, "t:1")} {
		parsed, err := ParseTag(tag.String())
		require.NoError(t, err)
		assert.Equal(t, tag, parsed)
	}
	_, err := ParseTag("")
	assert.Error(t, err)
	assert.Equal(t, "Accounts:LIST", ListTag(TagAccounts).String())
}
