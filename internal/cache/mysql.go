package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// MySQLStore keeps entries in the cache_entries table. Expired rows stay
// until PurgeExpired runs but are never returned.
type MySQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ Store = (*MySQLStore)(nil)

type MySQLOption func(*MySQLStore)

// WithClock replaces the time source used for expiry checks.
func WithClock(now func() time.Time) MySQLOption {
	return func(s *MySQLStore) {
		s.now = now
	}
}

func NewMySQLStore(db *sqlx.DB, opts ...MySQLOption) *MySQLStore {
	store := &MySQLStore{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *MySQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.GetContext(ctx, &value,
		"SELECT cache_value FROM cache_entries WHERE cache_key = ? AND expires_at > ?",
		key, s.now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cache entry %s: %w", key, err)
	}
	return value, true, nil
}

func (s *MySQLStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO cache_entries (cache_key, cache_value, expires_at, written_at) VALUES (?, ?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE cache_value = VALUES(cache_value), expires_at = VALUES(expires_at), written_at = VALUES(written_at)",
		key, value, now.Add(ttl), now)
	if err != nil {
		return fmt.Errorf("set cache entry %s: %w", key, err)
	}
	return nil
}

func (s *MySQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE cache_key = ?", key); err != nil {
		return fmt.Errorf("delete cache entry %s: %w", key, err)
	}
	return nil
}

func (s *MySQLStore) Expiry(ctx context.Context, key string) (time.Time, bool, error) {
	var expiresAt time.Time
	err := s.db.GetContext(ctx, &expiresAt,
		"SELECT expires_at FROM cache_entries WHERE cache_key = ? AND expires_at > ?",
		key, s.now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get cache expiry %s: %w", key, err)
	}
	return expiresAt, true, nil
}

func (s *MySQLStore) List(ctx context.Context, m Match, limit int) ([]Entry, error) {
	where, args := m.where(s.now().UTC())
	query := "SELECT cache_key, cache_value, expires_at, written_at FROM cache_entries " +
		"WHERE " + where + " ORDER BY written_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var entries []Entry
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	return entries, nil
}

func (s *MySQLStore) Keys(ctx context.Context, m Match) ([]string, error) {
	var keys []string
	where, args := m.where(s.now().UTC())
	if err := s.db.SelectContext(ctx, &keys,
		"SELECT cache_key FROM cache_entries WHERE "+where+" ORDER BY cache_key", args...); err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}
	return keys, nil
}

func (s *MySQLStore) Count(ctx context.Context, m Match) (int, error) {
	var count int
	where, args := m.where(s.now().UTC())
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM cache_entries WHERE "+where, args...); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return count, nil
}

func (s *MySQLStore) PurgeExpired(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE expires_at <= ?", s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired cache entries: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("result.RowsAffected > %w", err)
	}
	return int(removed), nil
}
