package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	searchKeyPrefix     = "workshops:search"
	searchGenerationKey = "workshops:search:gen"
)

// CacheLookup is the outcome of a Get. Generation is the cache generation the
// lookup ran against and must be handed back to Set.
type CacheLookup struct {
	Hit        bool
	Generation int64
}

// WorkshopCache stores serialized workshop search results
type WorkshopCache interface {
	// Get loads a cached result into dest
	Get(ctx context.Context, key string, dest any) (CacheLookup, error)
	// Set stores value under the generation returned by the Get that missed,
	// so results read before an Invalidate are never served after it
	Set(ctx context.Context, generation int64, key string, value any) error
	// Invalidate drops every cached search result
	Invalidate(ctx context.Context) error
}

// RedisWorkshopCache keeps search results in Redis under a generation number.
// Bumping the generation orphans all previous entries, which then expire by TTL.
type RedisWorkshopCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NoopWorkshopCache always misses
type NoopWorkshopCache struct{}

var workshopCacheInstance WorkshopCache = NoopWorkshopCache{}

// NewRedisClient parses a redis:// URL and verifies the connection
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// NewRedisWorkshopCache creates a cache whose entries live for ttl
func NewRedisWorkshopCache(client *redis.Client, ttl time.Duration) *RedisWorkshopCache {
	return &RedisWorkshopCache{client: client, ttl: ttl}
}

// GetWorkshopCache returns the initialized cache
func GetWorkshopCache() WorkshopCache {
	return workshopCacheInstance
}

// SetWorkshopCache sets the cache instance
func SetWorkshopCache(c WorkshopCache) {
	workshopCacheInstance = c
}

// SearchCacheKey normalizes search parameters into a stable cache key
func SearchCacheKey(city string, services []string, sortBy string) string {
	normalized := make([]string, 0, len(services))
	for _, s := range services {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			normalized = append(normalized, s)
		}
	}
	sort.Strings(normalized)
	return fmt.Sprintf("city=%s|services=%s|sort=%s",
		strings.ToLower(strings.TrimSpace(city)), strings.Join(normalized, ","), sortBy)
}

func (c *RedisWorkshopCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, searchGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func generationKey(gen int64, key string) string {
	return fmt.Sprintf("%s:%d:%s", searchKeyPrefix, gen, key)
}

// Get loads a cached result into dest
func (c *RedisWorkshopCache) Get(ctx context.Context, key string, dest any) (CacheLookup, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return CacheLookup{}, fmt.Errorf("read cache generation: %w", err)
	}
	lookup := CacheLookup{Generation: gen}
	fullKey := generationKey(gen, key)

	raw, err := c.client.Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return lookup, nil
	}
	if err != nil {
		return lookup, fmt.Errorf("get %s: %w", fullKey, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return lookup, fmt.Errorf("decode cached search: %w", err)
	}
	lookup.Hit = true
	return lookup, nil
}

// Set stores value under key in generation for the cache TTL. A generation
// that has since been invalidated leaves an orphan nobody reads.
func (c *RedisWorkshopCache) Set(ctx context.Context, generation int64, key string, value any) error {
	fullKey := generationKey(generation, key)

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode search: %w", err)
	}

	if err := c.client.Set(ctx, fullKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", fullKey, err)
	}
	return nil
}

// Invalidate bumps the generation counter
func (c *RedisWorkshopCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, searchGenerationKey).Err(); err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}
	return nil
}

// Get always misses
func (NoopWorkshopCache) Get(ctx context.Context, key string, dest any) (CacheLookup, error) {
	return CacheLookup{}, nil
}

// Set does nothing
func (NoopWorkshopCache) Set(ctx context.Context, generation int64, key string, value any) error {
	return nil
}

// Invalidate does nothing
func (NoopWorkshopCache) Invalidate(ctx context.Context) error { return nil }
