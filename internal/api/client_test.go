package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spendwise/internal/model"
	"github.com/Veraticus/spendwise/internal/session"
	"github.com/Veraticus/spendwise/internal/testutil"
)

func newSignedInClient(t *testing.T, opts ...Option) (*Client, *session.Store, *testutil.Backend) {
	t.Helper()
	backend := testutil.NewBackend(t)
	store := session.New(context.Background(), nil)
	access, refresh := backend.IssueTokens()
	user := backend.User()
	store.SetCredentials(&user, access, refresh)
	return NewClient(backend.URL(), store, opts...), store, backend
}

func TestDoAttachesBearerToken(t *testing.T) {
	client, store, backend := newSignedInClient(t)

	user, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testutil.DefaultEmail, user.Email)
	assert.Equal(t, 1, backend.Calls("GET /users/me"))
	assert.True(t, store.State().IsAuthenticated)
}

func TestDoRefreshesOnceAndRetries(t *testing.T) {
	client, store, backend := newSignedInClient(t)
	oldAccess := store.State().AccessToken
	backend.ExpireAccessTokens()

	accounts, err := client.Accounts(context.Background())
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	assert.Equal(t, 1, backend.Calls("POST /auth/refresh"))
	assert.Equal(t, 2, backend.Calls("GET /mono/accounts"))

	st := store.State()
	assert.True(t, st.IsAuthenticated)
	assert.NotEqual(t, oldAccess, st.AccessToken)
	assert.NotEmpty(t, st.RefreshToken)
}

func TestDoLogsOutWhenRefreshFails(t *testing.T) {
	client, store, backend := newSignedInClient(t)
	backend.ExpireAccessTokens()
	backend.SetRefreshFails(true)

	_, err := client.Accounts(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "/mono/accounts", apiErr.Path)

	assert.Equal(t, 1, backend.Calls("POST /auth/refresh"))
	assert.Equal(t, 1, backend.Calls("GET /mono/accounts"))

	st := store.State()
	assert.False(t, st.IsAuthenticated)
	assert.Empty(t, st.AccessToken)
	assert.Empty(t, st.RefreshToken)
	assert.Nil(t, st.User)
}

func TestDoLogsOutWithoutRefreshToken(t *testing.T) {
	backend := testutil.NewBackend(t)
	store := session.New(context.Background(), nil)
	user := backend.User()
	store.SetCredentials(&user, "stale-access", "")
	client := NewClient(backend.URL(), store)

	_, err := client.CurrentUser(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, backend.Calls("POST /auth/refresh"))
	assert.False(t, store.State().IsAuthenticated)
}

func TestDoDoesNotRetryTwice(t *testing.T) {
	var refreshes, calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			refreshes.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"accessToken":"new-access","refreshToken":"new-refresh"}`))
			return
		}
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"statusCode":401,"message":"Unauthorized"}`))
	}))
	defer server.Close()

	store := session.New(context.Background(), nil)
	store.SetCredentials(&model.User{ID: "u1"}, "access", "refresh")
	client := NewClient(server.URL, store)

	err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/users/me"}, nil)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, int32(2), calls.Load())

	// The retry's 401 is returned as-is; the refreshed pair stays in place.
	st := store.State()
	assert.Equal(t, "new-access", st.AccessToken)
	assert.True(t, st.IsAuthenticated)
}

func TestDoPropagatesNonAuthErrors(t *testing.T) {
	client, store, backend := newSignedInClient(t)
	backend.FailRoute("GET /mono/accounts", http.StatusInternalServerError)

	_, err := client.Accounts(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, backend.Calls("POST /auth/refresh"))
	assert.True(t, store.State().IsAuthenticated)
}

func TestDoReportsConnectivity(t *testing.T) {
	backend := testutil.NewBackend(t)
	store := session.New(context.Background(), nil)

	var mu sync.Mutex
	var seen []bool
	observer := func(online bool) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, online)
	}

	client := NewClient(backend.URL(), store, WithConnectivityObserver(observer))
	_, err := client.ForgotPassword(context.Background(), model.ForgotPasswordRequest{Email: "x@example.com"})
	require.NoError(t, err)

	backend.Server.Close()
	_, err = client.ForgotPassword(context.Background(), model.ForgotPasswordRequest{Email: "x@example.com"})
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, seen)
}

func TestRefreshCoalescing(t *testing.T) {
	release := make(chan struct{})
	var refreshes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			refreshes.Add(1)
			<-release
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"accessToken":"fresh","refreshToken":"fresh-refresh"}`))
			return
		}
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u1","email":"ada@example.com"}`))
	}))
	defer server.Close()

	store := session.New(context.Background(), nil)
	store.SetCredentials(&model.User{ID: "u1"}, "expired", "refresh")
	client := NewClient(server.URL, store, WithRefreshCoalescing(true))

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.CurrentUser(context.Background())
			errs <- err
		}()
	}

	// Let every request reach the refresh before it completes.
	require.Eventually(t, func() bool { return refreshes.Load() >= 1 }, testTimeout, testTick)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, refreshes.Load(), int32(n))
	assert.Equal(t, "fresh", store.State().AccessToken)
}

func TestErrorMessageParsing(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "string message", body: `{"statusCode":400,"message":"Email already verified"}`, want: "Email already verified"},
		{name: "validation list", body: `{"message":["email must be an email","password too short"]}`, want: "email must be an email; password too short"},
		{name: "error field", body: `{"error":"Bad Request"}`, want: "Bad Request"},
		{name: "plain text", body: "gateway timeout\n", want: "gateway timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseErrorMessage([]byte(tt.body)))
		})
	}

	err := &Error{Method: "GET", Path: "/x", Status: 404}
	assert.Equal(t, "GET /x: 404 Not Found", err.Error())
	assert.False(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, 0, StatusCode(errors.New("plain")))
}

func TestRefreshSession(t *testing.T) {
	client, store, backend := newSignedInClient(t)
	oldAccess := store.State().AccessToken

	require.NoError(t, client.RefreshSession(context.Background()))
	assert.Equal(t, 1, backend.Calls("POST /auth/refresh"))
	assert.NotEqual(t, oldAccess, store.State().AccessToken)

	backend.SetRefreshFails(true)
	err := client.RefreshSession(context.Background())
	require.Error(t, err)
	assert.True(t, store.State().IsAuthenticated, "a manual refresh failure keeps the session")

	signedOut := NewClient(backend.URL(), session.New(context.Background(), nil))
	assert.ErrorIs(t, signedOut.RefreshSession(context.Background()), ErrUnauthorized)
}
