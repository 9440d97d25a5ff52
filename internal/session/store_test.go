package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spendwise/internal/model"
	"github.com/Veraticus/spendwise/internal/service"
	"github.com/Veraticus/spendwise/internal/storage"
)

type memoryPersister struct {
	err   error
	creds service.Credentials
	mu    sync.Mutex
}

func (m *memoryPersister) LoadCredentials(_ context.Context) (*service.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c := m.creds
	return &c, nil
}

func (m *memoryPersister) SaveTokens(_ context.Context, access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.creds.AccessToken = access
	m.creds.RefreshToken = refresh
	return nil
}

func (m *memoryPersister) SaveUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.creds.User = user
	return nil
}

func (m *memoryPersister) ClearCredentials(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.creds = service.Credentials{}
	return nil
}

func testUser() *model.User {
	return &model.User{ID: "u1", Email: "ada@example.com", Name: "Ada"}
}

func TestNewHydration(t *testing.T) {
	tests := []struct {
		creds             service.Credentials
		name              string
		wantAuthenticated bool
	}{
		{name: "empty", wantAuthenticated: false},
		{name: "token without user", creds: service.Credentials{AccessToken: "a", RefreshToken: "r"}},
		{name: "user without token", creds: service.Credentials{User: testUser()}},
		{name: "token and user", creds: service.Credentials{AccessToken: "a", User: testUser()}, wantAuthenticated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := New(context.Background(), &memoryPersister{creds: tt.creds})
			st := store.State()
			assert.Equal(t, tt.wantAuthenticated, st.IsAuthenticated)
			assert.Equal(t, !tt.wantAuthenticated, st.IsLoading)
			assert.Equal(t, tt.creds.AccessToken, st.AccessToken)
		})
	}
}

func TestNewSurvivesLoadFailure(t *testing.T) {
	store := New(context.Background(), &memoryPersister{err: errors.New("disk gone")})
	st := store.State()
	assert.False(t, st.IsAuthenticated)
	assert.True(t, st.IsLoading)
}

func TestSetCredentialsAndLogout(t *testing.T) {
	persister := &memoryPersister{}
	store := New(context.Background(), persister)
	store.SetError("stale")

	store.SetCredentials(testUser(), "access", "refresh")
	st := store.State()
	assert.True(t, st.IsAuthenticated)
	assert.False(t, st.IsLoading)
	assert.Empty(t, st.Error)
	assert.Equal(t, "access", persister.creds.AccessToken)
	assert.Equal(t, "ada@example.com", persister.creds.User.Email)

	store.Logout()
	store.Logout()
	st = store.State()
	assert.False(t, st.IsAuthenticated)
	assert.Nil(t, st.User)
	assert.Empty(t, st.AccessToken)
	assert.Empty(t, st.RefreshToken)
	assert.Empty(t, persister.creds.AccessToken)
	assert.Nil(t, persister.creds.User)
}

func TestUpdateTokensKeepsUser(t *testing.T) {
	persister := &memoryPersister{}
	store := New(context.Background(), persister)
	store.SetCredentials(testUser(), "old-access", "old-refresh")

	store.UpdateTokens("new-access", "new-refresh")

	st := store.State()
	assert.Equal(t, "new-access", st.AccessToken)
	assert.Equal(t, "new-refresh", st.RefreshToken)
	assert.True(t, st.IsAuthenticated)
	require.NotNil(t, st.User)
	assert.Equal(t, "u1", st.User.ID)
	assert.Equal(t, "new-refresh", persister.creds.RefreshToken)
}

func TestPersistenceFailuresAreSwallowed(t *testing.T) {
	persister := &memoryPersister{}
	store := New(context.Background(), persister)
	persister.err = errors.New("read-only")

	assert.NotPanics(t, func() {
		store.SetCredentials(testUser(), "a", "r")
		store.UpdateTokens("b", "s")
		store.Logout()
	})
	assert.False(t, store.State().IsAuthenticated)
}

func TestSetErrorClearsLoading(t *testing.T) {
	store := New(context.Background(), nil)
	require.True(t, store.State().IsLoading)

	store.SetError("Invalid email or password. Please try again.")
	st := store.State()
	assert.False(t, st.IsLoading)
	assert.Equal(t, "Invalid email or password. Please try again.", st.Error)

	store.SetLoading(true)
	assert.True(t, store.State().IsLoading)
}

func TestSubscribe(t *testing.T) {
	store := New(context.Background(), nil)

	var seen []State
	unsubscribe := store.Subscribe(func(st State) {
		// Observers run outside the lock and may read the store.
		_ = store.State()
		seen = append(seen, st)
	})

	store.SetCredentials(testUser(), "a", "r")
	store.Logout()
	unsubscribe()
	store.SetLoading(true)

	require.Len(t, seen, 2)
	assert.True(t, seen[0].IsAuthenticated)
	assert.False(t, seen[1].IsAuthenticated)
}

func TestSnapshotIsIsolated(t *testing.T) {
	store := New(context.Background(), nil)
	store.SetCredentials(testUser(), "a", "r")

	st := store.State()
	st.User.Name = "Mutated"

	assert.Equal(t, "Ada", store.State().User.Name)
}

func TestToken(t *testing.T) {
	store := New(context.Background(), nil)
	assert.Nil(t, store.Token())

	store.SetCredentials(testUser(), "access", "refresh")
	tok := store.Token()
	require.NotNil(t, tok)
	assert.Equal(t, "Bearer", tok.Type())
	assert.Equal(t, "access", tok.AccessToken)
	assert.Equal(t, "refresh", store.RefreshToken())
}

func TestAccessTokenExpiry(t *testing.T) {
	store := New(context.Background(), nil)
	_, err := store.AccessTokenExpiry()
	require.ErrorIs(t, err, ErrNoAccessToken)

	exp := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("server-secret"))
	require.NoError(t, err)

	store.SetCredentials(testUser(), signed, "refresh")
	got, err := store.AccessTokenExpiry()
	require.NoError(t, err)
	assert.True(t, exp.Equal(got))

	store.UpdateTokens("opaque-token", "refresh")
	_, err = store.AccessTokenExpiry()
	require.Error(t, err)
}

func TestStoreWithSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	first := New(ctx, db)
	first.SetCredentials(testUser(), "access", "refresh")

	second := New(ctx, db)
	st := second.State()
	assert.True(t, st.IsAuthenticated)
	assert.False(t, st.IsLoading)
	assert.Equal(t, "refresh", st.RefreshToken)
}
