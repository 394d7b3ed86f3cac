// Package sound resolves sound metadata for the audio widget. Lookups go
// through a per-request memo, then the persistent cache, then the Sounds
// API.
package sound

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bitesizeirish/bitesize-cursai/internal/cache"
)

// DefaultListLimit is used by GetAllCachedSounds when no limit is given.
const DefaultListLimit = 20

// Disposition tells whether the last lookup was answered from a cache.
type Disposition string

const (
	DispositionHit  Disposition = "HIT"
	DispositionMiss Disposition = "MISS"
)

// Meta describes the most recent lookup of a Service. UpstreamStatus is 0
// when no upstream response was observed.
type Meta struct {
	Cache          Disposition
	UpstreamStatus int
}

// CachedSound is a record read back from the persistent cache.
type CachedSound struct {
	ID     int64
	Record Record
}

// Service is created per request. It is not safe for concurrent use.
type Service struct {
	store    cache.Store
	fetcher  Fetcher
	memo     *Memo
	logger   *slog.Logger
	lastMeta Meta
}

func NewService(store cache.Store, fetcher Fetcher, memo *Memo, logger *slog.Logger) *Service {
	if memo == nil {
		memo = NewMemo()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		fetcher:  fetcher,
		memo:     memo,
		logger:   logger,
		lastMeta: Meta{Cache: DispositionMiss},
	}
}

// LastMeta returns the metadata of the most recent GetSound or
// GetCachedSound call.
func (s *Service) LastMeta() Meta {
	return s.lastMeta
}

// GetSound returns the record of a sound, fetching it upstream when neither
// the memo nor the persistent cache has it. Upstream failures are returned
// as-is and never written to the persistent cache. The returned record is
// the caller's own copy.
func (s *Service) GetSound(ctx context.Context, id int64) (Record, error) {
	if id <= 0 {
		return nil, &Error{Kind: KindInvalidID, Message: "invalid sound ID"}
	}

	if entry, ok := s.memo.load(id); ok {
		s.lastMeta = Meta{Cache: DispositionHit}
		return entry.record, entry.err
	}

	key := CacheKey(id)
	if record, ok := s.readCache(ctx, key); ok {
		s.lastMeta = Meta{Cache: DispositionHit}
		s.memo.store(id, record, nil)
		return record, nil
	}

	record, err := s.fetcher.Fetch(ctx, id)
	if err != nil {
		s.lastMeta = Meta{Cache: DispositionMiss, UpstreamStatus: StatusOf(err)}
		s.memo.store(id, nil, err)
		return nil, err
	}

	if err := s.writeCache(ctx, key, record, ResolveTTL(record, http.StatusOK)); err != nil {
		s.logger.WarnContext(ctx, "Failed to cache sound", "sound_id", id, "error", err)
	}
	s.lastMeta = Meta{Cache: DispositionMiss, UpstreamStatus: http.StatusOK}
	s.memo.store(id, record, nil)
	return record, nil
}

// GetCachedSound reads the persistent cache only. It never calls upstream
// and leaves the memo untouched.
func (s *Service) GetCachedSound(ctx context.Context, id int64) (Record, bool, error) {
	if id <= 0 {
		return nil, false, nil
	}

	s.lastMeta = Meta{Cache: DispositionMiss}
	value, ok, err := s.store.Get(ctx, CacheKey(id))
	if err != nil {
		return nil, false, fmt.Errorf("store.Get > %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	record, err := decodeRecord(value)
	if err != nil {
		s.logger.WarnContext(ctx, "Ignoring malformed cache entry", "sound_id", id, "error", err)
		return nil, false, nil
	}
	s.lastMeta = Meta{Cache: DispositionHit}
	return record, true, nil
}

// GetCacheExpiry returns when the cached entry of a sound expires.
func (s *Service) GetCacheExpiry(ctx context.Context, id int64) (time.Time, bool, error) {
	if id <= 0 {
		return time.Time{}, false, nil
	}
	expiresAt, ok, err := s.store.Expiry(ctx, CacheKey(id))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("store.Expiry > %w", err)
	}
	return expiresAt, ok, nil
}

// Invalidate drops a sound from the persistent cache and the memo.
func (s *Service) Invalidate(ctx context.Context, id int64) error {
	if id <= 0 {
		return nil
	}
	if err := s.store.Delete(ctx, CacheKey(id)); err != nil {
		return fmt.Errorf("store.Delete > %w", err)
	}
	s.memo.forget(id)
	return nil
}

// GetAllCachedSounds lists cached sounds, most recently written first.
// Entries whose key or payload cannot be decoded are skipped, so fewer than
// limit sounds may come back.
func (s *Service) GetAllCachedSounds(ctx context.Context, limit int) ([]CachedSound, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	entries, err := s.store.List(ctx, keyMatch, limit)
	if err != nil {
		return nil, fmt.Errorf("store.List > %w", err)
	}

	sounds := make([]CachedSound, 0, len(entries))
	for _, entry := range entries {
		id, ok := ParseCacheKey(entry.Key)
		if !ok {
			continue
		}
		record, err := decodeRecord(entry.Value)
		if err != nil {
			s.logger.DebugContext(ctx, "Skipping malformed cache entry", "key", entry.Key, "error", err)
			continue
		}
		sounds = append(sounds, CachedSound{ID: id, Record: record})
	}
	return sounds, nil
}

// GetCachedSoundsCount counts live entries whose key carries a numeric sound
// ID, the same set ClearAllCaches removes.
func (s *Service) GetCachedSoundsCount(ctx context.Context) (int, error) {
	count, err := s.store.Count(ctx, keyMatch)
	if err != nil {
		return 0, fmt.Errorf("store.Count > %w", err)
	}
	return count, nil
}

// ClearAllCaches invalidates every cached sound and returns how many were
// removed.
func (s *Service) ClearAllCaches(ctx context.Context) (int, error) {
	keys, err := s.store.Keys(ctx, keyMatch)
	if err != nil {
		return 0, fmt.Errorf("store.Keys > %w", err)
	}

	count := 0
	for _, key := range keys {
		id, ok := ParseCacheKey(key)
		if !ok {
			continue
		}
		if err := s.Invalidate(ctx, id); err != nil {
			return count, fmt.Errorf("invalidate sound %d: %w", id, err)
		}
		count++
	}
	return count, nil
}

// PurgeExpired deletes expired entries that are still stored.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	removed, err := s.store.PurgeExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("store.PurgeExpired > %w", err)
	}
	return removed, nil
}

func (s *Service) readCache(ctx context.Context, key string) (Record, bool) {
	value, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "Cache read failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	record, err := decodeRecord(value)
	if err != nil {
		s.logger.WarnContext(ctx, "Ignoring malformed cache entry", "key", key, "error", err)
		return nil, false
	}
	return record, true
}

func (s *Service) writeCache(ctx context.Context, key string, record Record, ttl time.Duration) error {
	value, err := encodeRecord(record)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, key, value, ttl)
}

// Factory builds one Service per request, each with its own memo.
type Factory struct {
	store   cache.Store
	fetcher Fetcher
	logger  *slog.Logger
}

func NewFactory(store cache.Store, fetcher Fetcher, logger *slog.Logger) *Factory {
	return &Factory{store: store, fetcher: fetcher, logger: logger}
}

func (f *Factory) New() *Service {
	return NewService(f.store, f.fetcher, NewMemo(), f.logger)
}
