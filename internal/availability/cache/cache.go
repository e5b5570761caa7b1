// Package cache stores the occupied-days set of a media in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"adspace/pkg/model"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

type OccupiedDatesCache interface {
	Get(ctx context.Context, mediaID string) ([]time.Time, error)
	Set(ctx context.Context, mediaID string, days []time.Time) error
	Invalidate(ctx context.Context, mediaIDs ...string) error
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, mediaID string) ([]time.Time, error) {
	data, err := c.client.Get(ctx, cacheKey(mediaID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal occupied dates failed: %w", err)
	}

	days := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		d, err := model.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("corrupt cached date: %w", err)
		}
		days = append(days, d)
	}
	return days, nil
}

func (c *RedisCache) Set(ctx context.Context, mediaID string, days []time.Time) error {
	raw := make([]string, len(days))
	for i, d := range days {
		raw[i] = model.FormatDate(d)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal occupied dates failed: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(mediaID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, mediaIDs ...string) error {
	if len(mediaIDs) == 0 {
		return nil
	}
	keys := make([]string, len(mediaIDs))
	for i, id := range mediaIDs {
		keys[i] = cacheKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(mediaID string) string {
	return "occupied:" + mediaID
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]time.Time, error) { return nil, ErrCacheMiss }
func (Nop) Set(context.Context, string, []time.Time) error   { return nil }
func (Nop) Invalidate(context.Context, ...string) error       { return nil }
