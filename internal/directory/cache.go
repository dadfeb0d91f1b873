package directory

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "directory:"

// Cache is a Redis read-through layer over a Source. Lookups by name,
// channel and the name list are cached; searches and employee reads go
// straight through. Writes invalidate the whole namespace.
//
// Redis failures are never fatal: a miss or a broken connection falls
// back to the underlying source.
type Cache struct {
	src    Source
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(src Source, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{src: src, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *Cache) ClientByName(ctx context.Context, name string) (*ClientMapping, error) {
	key := cachePrefix + "client:name:" + strings.ToLower(name)
	var cached ClientMapping
	if c.get(ctx, key, &cached) {
		return &cached, nil
	}
	m, err := c.src.ClientByName(ctx, name)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, m)
	return m, nil
}

func (c *Cache) ClientByChannelID(ctx context.Context, channelID string) (*ClientMapping, error) {
	key := cachePrefix + "client:channel:" + channelID
	var cached ClientMapping
	if c.get(ctx, key, &cached) {
		return &cached, nil
	}
	m, err := c.src.ClientByChannelID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, m)
	return m, nil
}

func (c *Cache) AllClientNames(ctx context.Context) ([]string, error) {
	key := cachePrefix + "client:names"
	var cached []string
	if c.get(ctx, key, &cached) {
		return cached, nil
	}
	names, err := c.src.AllClientNames(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, names)
	return names, nil
}

func (c *Cache) SearchClients(ctx context.Context, query string) ([]ClientMapping, error) {
	return c.src.SearchClients(ctx, query)
}

func (c *Cache) CreateClient(ctx context.Context, m *ClientMapping) (*ClientMapping, error) {
	created, err := c.src.CreateClient(ctx, m)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx)
	return created, nil
}

func (c *Cache) UpdateClient(ctx context.Context, name string, updates map[string]any) (*ClientMapping, error) {
	updated, err := c.src.UpdateClient(ctx, name, updates)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx)
	return updated, nil
}

func (c *Cache) EmployeeBySlackID(ctx context.Context, slackUserID string) (*Employee, error) {
	return c.src.EmployeeBySlackID(ctx, slackUserID)
}

func (c *Cache) AllEmployees(ctx context.Context) ([]Employee, error) {
	return c.src.AllEmployees(ctx)
}

func (c *Cache) get(ctx context.Context, key string, dest any) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("directory cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug("directory cache entry unreadable", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, val any) {
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Debug("directory cache write failed", "key", key, "error", err)
	}
}

// invalidate drops every directory key. Writes are rare enough that a
// full sweep is cheaper than tracking which lookups a record serves.
func (c *Cache) invalidate(ctx context.Context) {
	iter := c.rdb.Scan(ctx, 0, cachePrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Debug("directory cache invalidate failed", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Debug("directory cache scan failed", "error", err)
	}
}
