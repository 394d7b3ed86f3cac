// Package cache provides the persistent key/value store behind the sound
// cache. Entries carry an absolute expiry and are invisible once it passes.
package cache

import (
	"context"
	"regexp"
	"strings"
	"time"
)

//go:generate mockgen -source=store.go -destination=../mocks/cache/mock_store.go -package=mock_cache Store

// Store is a persistent key/value store with per-entry expiry. Values are
// opaque bytes.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set writes value under key and replaces any previous entry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Expiry returns the absolute expiry of a live entry.
	Expiry(ctx context.Context, key string) (time.Time, bool, error)
	// List returns live entries matching m, most recently written first.
	// A limit of zero or less returns all of them.
	List(ctx context.Context, m Match, limit int) ([]Entry, error)
	Keys(ctx context.Context, m Match) ([]string, error)
	Count(ctx context.Context, m Match) (int, error)
	// PurgeExpired removes entries whose expiry has passed and returns how
	// many were removed.
	PurgeExpired(ctx context.Context) (int, error)
}

// Entry is one stored value.
type Entry struct {
	Key       string    `db:"cache_key"`
	Value     []byte    `db:"cache_value"`
	ExpiresAt time.Time `db:"expires_at"`
	WrittenAt time.Time `db:"written_at"`
}

// Match selects keys by a literal prefix and suffix. With Digits set, the
// part between them must be a non-empty run of decimal digits.
type Match struct {
	Prefix string
	Suffix string
	Digits bool
}

func (m Match) Matches(key string) bool {
	if len(key) < len(m.Prefix)+len(m.Suffix) ||
		!strings.HasPrefix(key, m.Prefix) ||
		!strings.HasSuffix(key, m.Suffix) {
		return false
	}
	if !m.Digits {
		return true
	}
	middle := key[len(m.Prefix) : len(key)-len(m.Suffix)]
	if middle == "" {
		return false
	}
	for _, c := range middle {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern returns the SQL LIKE pattern of m with wildcards in the
// literal parts escaped.
func (m Match) likePattern() string {
	return likeEscaper.Replace(m.Prefix) + "%" + likeEscaper.Replace(m.Suffix)
}

// regexpPattern returns the anchored REGEXP of a Digits match.
func (m Match) regexpPattern() string {
	return "^" + regexp.QuoteMeta(m.Prefix) + "[0-9]+" + regexp.QuoteMeta(m.Suffix) + "$"
}

// where returns the SQL condition selecting live keys of m.
func (m Match) where(now time.Time) (string, []any) {
	clause := "cache_key LIKE ?"
	args := []any{m.likePattern()}
	if m.Digits {
		clause += " AND cache_key REGEXP ?"
		args = append(args, m.regexpPattern())
	}
	return clause + " AND expires_at > ?", append(args, now)
}
