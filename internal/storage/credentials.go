package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Veraticus/spendwise/internal/model"
	"github.com/Veraticus/spendwise/internal/service"
)

// Settings keys for durable session state.
const (
	keyAccessToken  = "spendwise_access_token"
	keyRefreshToken = "spendwise_refresh_token"
	keyUser         = "spendwise_user"
	keyCacheVersion = "spendwise_cache_version"
)

// LoadCredentials reads the persisted session. Missing values come back empty.
func (s *SQLiteStorage) LoadCredentials(ctx context.Context) (*service.Credentials, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	creds := &service.Credentials{}

	access, _, err := s.getSetting(ctx, keyAccessToken)
	if err != nil {
		return nil, err
	}
	creds.AccessToken = access

	refresh, _, err := s.getSetting(ctx, keyRefreshToken)
	if err != nil {
		return nil, err
	}
	creds.RefreshToken = refresh

	raw, ok, err := s.getSetting(ctx, keyUser)
	if err != nil {
		return nil, err
	}
	if ok {
		var user model.User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			// An unreadable user is treated as absent.
			slog.Warn("Ignoring corrupt stored user", "error", err)
		} else {
			creds.User = &user
		}
	}

	return creds, nil
}

// SaveTokens persists the token pair. An empty refresh token removes the stored one.
func (s *SQLiteStorage) SaveTokens(ctx context.Context, accessToken, refreshToken string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := putOrDeleteTx(ctx, tx, keyAccessToken, accessToken); err != nil {
			return err
		}
		return putOrDeleteTx(ctx, tx, keyRefreshToken, refreshToken)
	})
}

// SaveUser persists the signed-in user as JSON.
func (s *SQLiteStorage) SaveUser(ctx context.Context, user *model.User) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateUser(user); err != nil {
		return err
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return setSettingTx(ctx, tx, keyUser, string(data))
	})
}

// ClearCredentials removes the tokens and the user.
func (s *SQLiteStorage) ClearCredentials(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM settings WHERE key IN (?, ?, ?)`,
		keyAccessToken, keyRefreshToken, keyUser)
	if err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

func putOrDeleteTx(ctx context.Context, tx *sql.Tx, key, value string) error {
	if value == "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
			return fmt.Errorf("failed to delete setting %s: %w", key, err)
		}
		return nil
	}
	return setSettingTx(ctx, tx, key, value)
}
