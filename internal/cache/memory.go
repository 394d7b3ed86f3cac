package cache

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const cleanupInterval = 10 * time.Minute

// MemoryStore keeps entries in process memory. It suits a single server
// process and tests; entries are lost on restart.
type MemoryStore struct {
	items *gocache.Cache
	seq   atomic.Uint64
}

var _ Store = (*MemoryStore)(nil)

type memoryItem struct {
	value     []byte
	writtenAt time.Time
	seq       uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := s.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	return value.(memoryItem).value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.items.Set(key, memoryItem{
		value:     value,
		writtenAt: time.Now(),
		seq:       s.seq.Add(1),
	}, ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.items.Delete(key)
	return nil
}

func (s *MemoryStore) Expiry(_ context.Context, key string) (time.Time, bool, error) {
	_, expiresAt, ok := s.items.GetWithExpiration(key)
	if !ok || expiresAt.IsZero() {
		return time.Time{}, false, nil
	}
	return expiresAt, true, nil
}

func (s *MemoryStore) List(_ context.Context, m Match, limit int) ([]Entry, error) {
	type ordered struct {
		entry Entry
		seq   uint64
	}
	var matched []ordered
	for key, item := range s.items.Items() {
		if !m.Matches(key) {
			continue
		}
		stored := item.Object.(memoryItem)
		entry := Entry{
			Key:       key,
			Value:     stored.value,
			WrittenAt: stored.writtenAt,
		}
		if item.Expiration > 0 {
			entry.ExpiresAt = time.Unix(0, item.Expiration)
		}
		matched = append(matched, ordered{entry: entry, seq: stored.seq})
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].seq > matched[j].seq
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	entries := make([]Entry, 0, len(matched))
	for _, o := range matched {
		entries = append(entries, o.entry)
	}
	return entries, nil
}

func (s *MemoryStore) Keys(_ context.Context, m Match) ([]string, error) {
	var keys []string
	for key := range s.items.Items() {
		if m.Matches(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Count(_ context.Context, m Match) (int, error) {
	count := 0
	for key := range s.items.Items() {
		if m.Matches(key) {
			count++
		}
	}
	return count, nil
}

// PurgeExpired reports the drop in item count, which is approximate while
// other goroutines write.
func (s *MemoryStore) PurgeExpired(_ context.Context) (int, error) {
	before := s.items.ItemCount()
	s.items.DeleteExpired()
	removed := before - s.items.ItemCount()
	if removed < 0 {
		removed = 0
	}
	return removed, nil
}
