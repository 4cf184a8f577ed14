package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"scanline/backend/internal/domain"
)

// RedisAvailabilityCache shares stock snapshots across terminals through
// redis. Entries carry a TTL as a safety net against terminals that never
// refresh; within a session the semantics match the map cache.
type RedisAvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAvailabilityCache(addr, password string, db int, ttl time.Duration) *RedisAvailabilityCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisAvailabilityCache{client: client, ttl: ttl}
}

// Ping verifies connectivity at startup.
func (c *RedisAvailabilityCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisAvailabilityCache) Close() error {
	return c.client.Close()
}

func redisKey(itemCode, warehouse string) string {
	return fmt.Sprintf("scanline:availability:%s:%s", itemCode, warehouse)
}

func (c *RedisAvailabilityCache) Get(ctx context.Context, itemCode, warehouse string) (*domain.AvailabilitySnapshot, bool, error) {
	raw, err := c.client.Get(ctx, redisKey(itemCode, warehouse)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var snap domain.AvailabilitySnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// Corrupt entries are dropped rather than poisoning every check.
		log.Printf("[cache] WARN: discarding unreadable snapshot for %s/%s: %v", itemCode, warehouse, err)
		_ = c.client.Del(ctx, redisKey(itemCode, warehouse)).Err()
		return nil, false, nil
	}
	return &snap, true, nil
}

func (c *RedisAvailabilityCache) Set(ctx context.Context, itemCode, warehouse string, snap *domain.AvailabilitySnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, redisKey(itemCode, warehouse), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisAvailabilityCache) Delete(ctx context.Context, itemCode, warehouse string) error {
	if err := c.client.Del(ctx, redisKey(itemCode, warehouse)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
