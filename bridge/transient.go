package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type transientEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryTransients is an in-process TransientCache. Expiry is checked
// against the injected clock on read.
type MemoryTransients struct {
	mu      sync.Mutex
	now     Clock
	entries map[string]transientEntry
}

func NewMemoryTransients(now Clock) *MemoryTransients {
	if now == nil {
		now = time.Now
	}
	return &MemoryTransients{now: now, entries: make(map[string]transientEntry)}
}

func (m *MemoryTransients) SetTransient(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode transient %s: %w", key, err)
	}
	entry := transientEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryTransients) GetTransient(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if ok && !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.data, dst); err != nil {
		return false, fmt.Errorf("failed to decode transient %s: %w", key, err)
	}
	return true, nil
}

func (m *MemoryTransients) DeleteTransient(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

// RedisTransients stores transients as plain keys with a Redis TTL.
type RedisTransients struct {
	client *RedisCache
	prefix string
}

func NewRedisTransients(client *RedisCache, prefix string) *RedisTransients {
	return &RedisTransients{client: client, prefix: prefix}
}

func (r *RedisTransients) key(k string) string { return r.prefix + k }

func (r *RedisTransients) SetTransient(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode transient %s: %w", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return r.client.InternalCache.Set(ctx, r.key(key), data, ttl).Err()
}

func (r *RedisTransients) GetTransient(ctx context.Context, key string, dst any) (bool, error) {
	result, err := r.client.InternalCache.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(result, dst); err != nil {
		return false, fmt.Errorf("failed to decode transient %s: %w", key, err)
	}
	return true, nil
}

func (r *RedisTransients) DeleteTransient(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	return r.client.InternalCache.Del(ctx, full...).Err()
}
