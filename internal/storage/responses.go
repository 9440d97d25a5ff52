package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/spendwise/internal/common"
	"github.com/Veraticus/spendwise/internal/service"
)

// GetResponse returns a persisted payload. Missing and expired entries
// return common.ErrNotFound; expired rows are removed on the way out.
func (s *SQLiteStorage) GetResponse(ctx context.Context, key string) (*service.CachedResponse, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(key, "key"); err != nil {
		return nil, err
	}

	var (
		data               []byte
		rawTags            string
		storedAt, expireAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT data, tags, stored_at, expires_at FROM cache_entries WHERE key = ?
	`, key).Scan(&data, &rawTags, &storedAt, &expireAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cached response %s: %w", key, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached response: %w", err)
	}

	expiresAt := time.UnixMilli(expireAt)
	if !s.now().Before(expiresAt) {
		if err := s.RemoveResponse(ctx, key); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("cached response %s expired: %w", key, common.ErrNotFound)
	}

	var tags []string
	if err := json.Unmarshal([]byte(rawTags), &tags); err != nil {
		return nil, fmt.Errorf("%w: tags for %s: %v", common.ErrDatabaseCorrupted, key, err)
	}

	return &service.CachedResponse{
		Key:       key,
		Data:      data,
		Tags:      tags,
		StoredAt:  time.UnixMilli(storedAt),
		ExpiresAt: expiresAt,
	}, nil
}

// SetResponse stores a payload with its tags until ttl elapses.
func (s *SQLiteStorage) SetResponse(ctx context.Context, key string, data []byte, tags []string, ttl time.Duration) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(key, "key"); err != nil {
		return err
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	if tags == nil {
		tags = []string{}
	}

	rawTags, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	now := s.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, data, tags, stored_at, expires_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			tags = excluded.tags,
			stored_at = excluded.stored_at,
			expires_at = excluded.expires_at
	`, key, data, string(rawTags), now.UnixMilli(), now.Add(ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to store cached response: %w", err)
	}
	return nil
}

// RemoveResponse deletes one persisted payload.
func (s *SQLiteStorage) RemoveResponse(ctx context.Context, key string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to remove cached response: %w", err)
	}
	return nil
}

// ClearResponses deletes every persisted payload.
func (s *SQLiteStorage) ClearResponses(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("failed to clear cached responses: %w", err)
	}
	return nil
}

// CleanupExpired deletes expired payloads and reports how many were removed.
func (s *SQLiteStorage) CleanupExpired(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up cached responses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleaned responses: %w", err)
	}
	return int(n), nil
}
