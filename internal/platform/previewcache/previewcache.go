// Package previewcache keeps recently viewed patient file bytes so repeated
// previews skip the storage fallback chain.
package previewcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrMiss = errors.New("cache miss")

type Entry struct {
	ContentType string
	Data        []byte
}

type Cache interface {
	Get(ctx context.Context, fileID string) (*Entry, error)
	Set(ctx context.Context, fileID string, e Entry) error
	Delete(ctx context.Context, fileID string) error
	Ping(ctx context.Context) error
}

func key(fileID string) string { return "preview:" + fileID }

type RedisCache struct {
	c   *redis.Client
	ttl time.Duration
}

// NewRedisCache parses a redis:// URL.
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisCache{c: redis.NewClient(opts), ttl: ttl}, nil
}

func (r *RedisCache) Get(ctx context.Context, fileID string) (*Entry, error) {
	vals, err := r.c.HGetAll(ctx, key(fileID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrMiss
		}
		return nil, err
	}
	data, ok := vals["data"]
	if !ok {
		return nil, ErrMiss
	}
	return &Entry{ContentType: vals["content_type"], Data: []byte(data)}, nil
}

func (r *RedisCache) Set(ctx context.Context, fileID string, e Entry) error {
	k := key(fileID)
	_, err := r.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, "content_type", e.ContentType, "data", e.Data)
		// EXPIRE with a zero ttl deletes the key; ttl <= 0 means keep it.
		if r.ttl > 0 {
			p.Expire(ctx, k, r.ttl)
		}
		return nil
	})
	return err
}

func (r *RedisCache) Delete(ctx context.Context, fileID string) error {
	return r.c.Del(ctx, key(fileID)).Err()
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.c.Close()
}

type memEntry struct {
	Entry
	expires time.Time
}

// MemoryCache is used when REDIS_URL is unset.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{entries: make(map[string]memEntry), ttl: ttl, now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, fileID string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[fileID]
	if !ok {
		return nil, ErrMiss
	}
	if m.ttl > 0 && m.now().After(e.expires) {
		delete(m.entries, fileID)
		return nil, ErrMiss
	}
	out := e.Entry
	return &out, nil
}

func (m *MemoryCache) Set(_ context.Context, fileID string, e Entry) error {
	m.mu.Lock()
	m.entries[fileID] = memEntry{Entry: e, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, fileID string) error {
	m.mu.Lock()
	delete(m.entries, fileID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Ping(context.Context) error { return nil }
