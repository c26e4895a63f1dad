package device

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"fintrack/internal/entity"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultCacheTTL = 24 * time.Hour

// Cache stores resolved locations keyed by IP. Implementations are best-effort:
// a failing backend behaves like a miss.
type Cache interface {
	Get(ctx context.Context, ip string) (entity.Location, bool)
	Set(ctx context.Context, ip string, loc entity.Location)
}

type NopCache struct{}

func (NopCache) Get(context.Context, string) (entity.Location, bool) { return entity.Location{}, false }
func (NopCache) Set(context.Context, string, entity.Location)        {}

type memoryEntry struct {
	location entity.Location
	storedAt time.Time
}

// MemoryCache is a process-local cache with a freshness window.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration, now func() time.Time) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{entries: make(map[string]memoryEntry), ttl: ttl, now: now}
}

func (c *MemoryCache) Get(_ context.Context, ip string) (entity.Location, bool) {
	c.mu.RLock()
	entry, ok := c.entries[ip]
	c.mu.RUnlock()
	if !ok {
		return entity.Location{}, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		c.mu.Lock()
		if current, ok := c.entries[ip]; ok && current.storedAt.Equal(entry.storedAt) {
			delete(c.entries, ip)
		}
		c.mu.Unlock()
		return entity.Location{}, false
	}
	return entry.location, true
}

func (c *MemoryCache) Set(_ context.Context, ip string, loc entity.Location) {
	c.mu.Lock()
	c.entries[ip] = memoryEntry{location: loc, storedAt: c.now()}
	c.mu.Unlock()
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RedisCache shares resolved locations between instances; expiry is left to Redis.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger logrus.FieldLogger
}

func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration, logger logrus.FieldLogger) *RedisCache {
	if prefix == "" {
		prefix = "geo"
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *RedisCache) key(ip string) string {
	return c.prefix + ":" + ip
}

func (c *RedisCache) Get(ctx context.Context, ip string) (entity.Location, bool) {
	data, err := c.client.Get(ctx, c.key(ip)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).WithField("ip", ip).Warn("geo cache read failed")
		}
		return entity.Location{}, false
	}
	var loc entity.Location
	if err := json.Unmarshal(data, &loc); err != nil {
		c.logger.WithError(err).WithField("ip", ip).Warn("geo cache entry corrupt")
		return entity.Location{}, false
	}
	return loc, true
}

func (c *RedisCache) Set(ctx context.Context, ip string, loc entity.Location) {
	data, err := json.Marshal(loc)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(ip), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("ip", ip).Warn("geo cache write failed")
	}
}
