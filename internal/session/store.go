// Package session holds the authenticated session: the token pair, the
// signed-in user and the flags views render from.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/Veraticus/spendwise/internal/model"
	"github.com/Veraticus/spendwise/internal/service"
)

// ErrNoAccessToken is returned when an operation needs a token and none is stored.
var ErrNoAccessToken = errors.New("no access token")

const persistTimeout = 5 * time.Second

// State is a snapshot of the session.
type State struct {
	User            *model.User
	AccessToken     string
	RefreshToken    string
	Error           string
	IsAuthenticated bool
	IsLoading       bool
}

// Store is the single owner of session state. Every transition is
// serialized and observers see the resulting snapshot.
type Store struct {
	persister service.CredentialStore
	logger    *slog.Logger
	observers map[int]func(State)
	state     State
	nextID    int
	mu        sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a store hydrated from persister. A nil persister keeps the
// session in memory only.
func New(ctx context.Context, persister service.CredentialStore, opts ...Option) *Store {
	s := &Store{
		persister: persister,
		logger:    slog.Default().With("component", "session"),
		observers: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}

	if persister != nil {
		creds, err := persister.LoadCredentials(ctx)
		if err != nil {
			s.logger.Warn("Failed to load stored session", "error", err)
		} else {
			s.state.AccessToken = creds.AccessToken
			s.state.RefreshToken = creds.RefreshToken
			s.state.User = creds.User
		}
	}

	s.state.IsAuthenticated = s.state.AccessToken != "" && s.state.User != nil
	s.state.IsLoading = !s.state.IsAuthenticated

	return s
}

// State returns a snapshot of the session.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Subscribe registers fn to run after every transition. The returned
// function removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.observers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// SetCredentials installs a freshly authenticated session.
func (s *Store) SetCredentials(user *model.User, accessToken, refreshToken string) {
	s.update(func(st *State) {
		st.User = user
		st.AccessToken = accessToken
		st.RefreshToken = refreshToken
		st.IsAuthenticated = true
		st.IsLoading = false
		st.Error = ""
	})

	s.persist("save tokens", func(ctx context.Context) error {
		return s.persister.SaveTokens(ctx, accessToken, refreshToken)
	})
	if user != nil {
		s.persist("save user", func(ctx context.Context) error {
			return s.persister.SaveUser(ctx, user)
		})
	}
}

// SetUser replaces the signed-in user without touching the tokens.
func (s *Store) SetUser(user *model.User) {
	if user == nil {
		return
	}
	s.update(func(st *State) {
		st.User = user
		st.IsAuthenticated = st.AccessToken != ""
	})
	s.persist("save user", func(ctx context.Context) error {
		return s.persister.SaveUser(ctx, user)
	})
}

// UpdateTokens replaces the token pair after a refresh.
func (s *Store) UpdateTokens(accessToken, refreshToken string) {
	s.update(func(st *State) {
		st.AccessToken = accessToken
		st.RefreshToken = refreshToken
	})
	s.persist("save tokens", func(ctx context.Context) error {
		return s.persister.SaveTokens(ctx, accessToken, refreshToken)
	})
}

// Logout clears the session and its persisted copy. Calling it twice is harmless.
func (s *Store) Logout() {
	s.update(func(st *State) {
		st.User = nil
		st.AccessToken = ""
		st.RefreshToken = ""
		st.IsAuthenticated = false
		st.IsLoading = false
		st.Error = ""
	})
	s.persist("clear credentials", func(ctx context.Context) error {
		return s.persister.ClearCredentials(ctx)
	})
}

// SetLoading sets the loading flag.
func (s *Store) SetLoading(loading bool) {
	s.update(func(st *State) {
		st.IsLoading = loading
	})
}

// SetError records a display error and ends any loading phase.
func (s *Store) SetError(msg string) {
	s.update(func(st *State) {
		st.Error = msg
		st.IsLoading = false
	})
}

// Token returns the current token pair, or nil when there is no access token.
func (s *Store) Token() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.AccessToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.state.AccessToken,
		RefreshToken: s.state.RefreshToken,
		TokenType:    "Bearer",
	}
}

// RefreshToken returns the stored refresh token.
func (s *Store) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.RefreshToken
}

// AccessTokenExpiry reads the exp claim of the access token without
// verifying its signature. It is for display only.
func (s *Store) AccessTokenExpiry() (time.Time, error) {
	s.mu.Lock()
	token := s.state.AccessToken
	s.mu.Unlock()

	if token == "" {
		return time.Time{}, ErrNoAccessToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse access token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read expiry: %w", err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	snap := s.snapshot()

	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	observers := make([]func(State), 0, len(ids))
	for _, id := range ids {
		observers = append(observers, s.observers[id])
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

// snapshot must be called with mu held.
func (s *Store) snapshot() State {
	snap := s.state
	if s.state.User != nil {
		user := *s.state.User
		snap.User = &user
	}
	return snap
}

func (s *Store) persist(op string, fn func(context.Context) error) {
	if s.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		s.logger.Warn("Failed to persist session", "operation", op, "error", err)
	}
}
