package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	appErrors "github.com/noah-isme/procedure-staffing-api/pkg/errors"
)

type memoryCacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryCacheRepository is an in-process stand-in for CacheRepository used
// when Redis is not configured. Values are stored JSON-encoded so callers
// never share memory with the cache.
type MemoryCacheRepository struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
	now     func() time.Time
}

// NewMemoryCacheRepository constructs an empty in-memory cache.
func NewMemoryCacheRepository() *MemoryCacheRepository {
	return &MemoryCacheRepository{entries: make(map[string]memoryCacheEntry), now: time.Now}
}

// Get retrieves and unmarshals the cached value into the provided destination.
func (r *MemoryCacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok || !r.now().Before(entry.expiresAt) {
		return appErrors.ErrCacheMiss
	}
	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set marshals the provided value and stores it with the given TTL.
func (r *MemoryCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	r.mu.Lock()
	r.entries[key] = memoryCacheEntry{payload: payload, expiresAt: r.now().Add(ttl)}
	r.mu.Unlock()
	return nil
}

// DeleteByPattern removes entries whose key matches the glob pattern. A
// pattern whose only metacharacter is a trailing "*" is a key prefix and, as
// in Redis, also spans "/" in keys.
func (r *MemoryCacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	match, err := keyMatcher(pattern)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.entries {
		if match(key) {
			delete(r.entries, key)
		}
	}
	return nil
}

func keyMatcher(pattern string) (func(string) bool, error) {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok && !strings.ContainsAny(prefix, `*?[\`) {
		return func(key string) bool { return strings.HasPrefix(key, prefix) }, nil
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid cache pattern %s: %w", pattern, err)
	}
	return func(key string) bool {
		ok, _ := path.Match(pattern, key)
		return ok
	}, nil
}

// Close drops every entry.
func (r *MemoryCacheRepository) Close() error {
	r.mu.Lock()
	r.entries = make(map[string]memoryCacheEntry)
	r.mu.Unlock()
	return nil
}
