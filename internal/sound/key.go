package sound

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bitesizeirish/bitesize-cursai/internal/cache"
)

// The version suffix lets the payload schema change without reading
// entries written by an older release.
const (
	keyPrefix = "bitesize_sound_"
	keySuffix = "_v1"
)

var (
	keyMatch   = cache.Match{Prefix: keyPrefix, Suffix: keySuffix, Digits: true}
	keyPattern = regexp.MustCompile(`^` + keyPrefix + `(\d+)` + keySuffix + `$`)
)

// CacheKey returns the persistent cache key of a sound.
func CacheKey(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10) + keySuffix
}

// ParseCacheKey extracts the sound ID from a persistent cache key.
func ParseCacheKey(key string) (int64, bool) {
	matches := keyPattern.FindStringSubmatch(key)
	if matches == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ParseID reads a sound ID the way editors and form fields supply it: the
// leading integer of value, so "12abc" is 12. Anything without one is 0,
// which every lookup rejects as invalid.
func ParseID(value string) int64 {
	value = strings.TrimSpace(value)
	end := 0
	for end < len(value) && (value[end] >= '0' && value[end] <= '9' || end == 0 && (value[end] == '-' || value[end] == '+')) {
		end++
	}
	n, err := strconv.ParseInt(value[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
