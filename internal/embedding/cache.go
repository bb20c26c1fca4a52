package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultCacheTTL        = 24 * time.Hour
	defaultCacheMaxEntries = 1000
)

// CacheConfig tunes the embedding cache. A nil Redis disables the second tier.
type CacheConfig struct {
	Redis      *redis.Client
	TTL        time.Duration
	MaxEntries int
}

// Cache memoises vectors of an inner Embedder: in process first, then Redis.
type Cache struct {
	inner      Embedder
	l1         sync.Map
	rdb        *redis.Client
	ttl        time.Duration
	maxEntries int
	prefix     string
	logger     *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	vector    []float32
	expiresAt time.Time
}

func NewCache(inner Embedder, cfg CacheConfig, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}

	return &Cache{
		inner:      inner,
		rdb:        cfg.Redis,
		ttl:        ttl,
		maxEntries: maxEntries,
		logger:     log,
	}
}

func (c *Cache) Provider() string {
	p, _ := Describe(c.inner)
	return p
}

func (c *Cache) Model() string {
	_, m := Describe(c.inner)
	return m
}

// Stats returns cache hit and miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	if vec, ok := c.get(ctx, key); ok {
		c.hits.Add(1)
		return vec, nil
	}
	c.misses.Add(1)

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.set(ctx, key, vec)
	return vec, nil
}

// key depends on the model because vectors of different models are not comparable.
func (c *Cache) key(text string) string {
	provider, model := Describe(c.inner)
	sum := sha256.Sum256([]byte(provider + "|" + model + "|" + text))
	return fmt.Sprintf("emb:%x", sum[:12])
}

func (c *Cache) get(ctx context.Context, key string) ([]float32, bool) {
	if val, ok := c.l1.Load(key); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return entry.vector, true
		}
		c.l1.Delete(key)
	}

	if c.rdb == nil {
		return nil, false
	}

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("embedding cache: redis get failed", zap.Error(err))
		}
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil || len(vec) == 0 {
		return nil, false
	}

	c.storeL1(key, vec)
	return vec, true
}

func (c *Cache) set(ctx context.Context, key string, vec []float32) {
	c.storeL1(key, vec)

	if c.rdb == nil {
		return
	}

	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Debug("embedding cache: redis set failed", zap.Error(err))
	}
}

func (c *Cache) storeL1(key string, vec []float32) {
	c.evictIfNeeded()
	c.l1.Store(key, &cacheEntry{vector: vec, expiresAt: time.Now().Add(c.ttl)})
}

// evictIfNeeded drops expired entries, then the oldest ones, until there is
// room for one more.
func (c *Cache) evictIfNeeded() {
	count := 0
	c.l1.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count < c.maxEntries {
		return
	}

	now := time.Now()
	c.l1.Range(func(key, val any) bool {
		if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return true
	})

	for count >= c.maxEntries {
		var oldestKey any
		oldestAt := now.Add(c.ttl + time.Hour)
		c.l1.Range(func(key, val any) bool {
			if entry, ok := val.(*cacheEntry); ok && entry.expiresAt.Before(oldestAt) {
				oldestKey = key
				oldestAt = entry.expiresAt
			}
			return true
		})
		if oldestKey == nil {
			return
		}
		c.l1.Delete(oldestKey)
		count--
	}
}
