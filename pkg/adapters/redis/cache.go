package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/xplanning/pkg/policy"
	"github.com/aretw0/xplanning/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the cache.
const DefaultPrefix = "xplanning:"

// Cache implements ports.ResultCache using Redis. Entries are JSON documents;
// an index sorted set scored by expiry lets List skip expired entries.
type Cache struct {
	client backend.UniversalClient
	prefix string
	ttl    time.Duration
}

// Option configures the Redis cache.
type Option func(*Cache)

// WithPrefix sets a custom key prefix (default "xplanning:").
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// WithTTL expires entries after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// New connects to addr.
func New(addr, password string, db int, opts ...Option) *Cache {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient wraps an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Cache {
	c := &Cache{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Client returns the underlying client, to share it with a Locker.
func (c *Cache) Client() backend.UniversalClient { return c.client }

func (c *Cache) key(k string) string { return c.prefix + k }
func (c *Cache) indexKey() string    { return c.prefix + "index" }

// Get implements ports.ResultCache.
func (c *Cache) Get(ctx context.Context, key string) (*policy.Info, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, ports.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	var info policy.Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decoding cached info %s: %w", key, err)
	}
	return &info, nil
}

// Put implements ports.ResultCache.
func (c *Cache) Put(ctx context.Context, key string, info *policy.Info) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding info %s: %w", key, err)
	}

	score := float64(0)
	if c.ttl > 0 {
		score = float64(time.Now().Add(c.ttl).Unix())
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.key(key), data, c.ttl)
	pipe.ZAdd(ctx, c.indexKey(), backend.Z{Score: score, Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put %s: %w", key, err)
	}
	return nil
}

// Delete implements ports.ResultCache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, c.key(key))
	pipe.ZRem(ctx, c.indexKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// List returns the keys of live entries. Expired index members are removed
// lazily; entries without TTL have score 0 and are never pruned.
func (c *Cache) List(ctx context.Context) ([]string, error) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	if err := c.client.ZRemRangeByScore(ctx, c.indexKey(), "1", now).Err(); err != nil {
		return nil, fmt.Errorf("redis prune index: %w", err)
	}
	keys, err := c.client.ZRange(ctx, c.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}
	return keys, nil
}
