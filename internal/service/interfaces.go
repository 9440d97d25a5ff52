// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/spendwise/internal/model"
)

// Credentials is the persisted session: the token pair and the signed-in user.
type Credentials struct {
	User         *model.User
	AccessToken  string
	RefreshToken string
}

// CredentialStore persists the session across restarts.
type CredentialStore interface {
	LoadCredentials(ctx context.Context) (*Credentials, error)
	SaveTokens(ctx context.Context, accessToken, refreshToken string) error
	SaveUser(ctx context.Context, user *model.User) error
	ClearCredentials(ctx context.Context) error
}

// CachedResponse is a persisted API payload with the tags it provides.
type CachedResponse struct {
	StoredAt  time.Time
	ExpiresAt time.Time
	Key       string
	Data      []byte
	Tags      []string
}

// ResponseCache persists fetched payloads so they can be shown before the
// network answers. Expired entries are reported as common.ErrNotFound.
type ResponseCache interface {
	GetResponse(ctx context.Context, key string) (*CachedResponse, error)
	SetResponse(ctx context.Context, key string, data []byte, tags []string, ttl time.Duration) error
	RemoveResponse(ctx context.Context, key string) error
	ClearResponses(ctx context.Context) error
	CleanupExpired(ctx context.Context) (int, error)
}

// Storage combines every durable concern of the client.
type Storage interface {
	CredentialStore
	ResponseCache

	Migrate(ctx context.Context) error
	Close() error
}
