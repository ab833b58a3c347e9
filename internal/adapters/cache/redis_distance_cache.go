package cache

import (
	"context"
	"errors"
	"fmt"
	"ice-route-service/internal/platform/obs"
	"ice-route-service/internal/ports"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDistanceCache keeps live results in one hash per (bucket, origin),
// expiring the whole hash after ttl. Traffic-aware buckets age out on
// their own instead of accumulating like the SQL cache.
type RedisDistanceCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ ports.DistanceCache = (*RedisDistanceCache)(nil)

func NewRedisDistanceCache(client *redis.Client, ttl time.Duration) *RedisDistanceCache {
	return &RedisDistanceCache{
		client: client,
		prefix: "distance",
		ttl:    ttl,
	}
}

func (c *RedisDistanceCache) key(origin, bucket string) string {
	return c.prefix + ":" + bucket + ":" + origin
}

func (c *RedisDistanceCache) GetMany(
	ctx context.Context,
	origin string,
	destinations []string,
	bucket string,
) (_ map[string]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "distance.redis.GetMany")(&err)

	if origin == "" {
		return nil, errors.New("get distance cache: origin must not be empty")
	}

	uniq := uniqueKeys(destinations)
	if len(uniq) == 0 {
		return map[string]ports.DistanceResult{}, nil
	}

	vals, err := c.client.HMGet(ctx, c.key(origin, bucket), uniq...).Result()
	if err != nil {
		return nil, fmt.Errorf("get distance cache: hmget: %w", err)
	}

	out := make(map[string]ports.DistanceResult, len(uniq))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		r, err := decodeDistance(s)
		if err != nil {
			return nil, fmt.Errorf("get distance cache: dest=%q: %w", uniq[i], err)
		}
		out[uniq[i]] = r
	}

	return out, nil
}

func (c *RedisDistanceCache) PutMany(
	ctx context.Context,
	origin string,
	bucket string,
	results map[string]ports.DistanceResult,
) error {
	if origin == "" {
		return errors.New("insert distance cache: origin must not be empty")
	}
	if len(results) == 0 {
		return nil
	}

	fields := make(map[string]any, len(results))
	for dest, r := range results {
		if strings.TrimSpace(dest) == "" {
			return errors.New("insert distance cache: empty destination key")
		}
		fields[dest] = encodeDistance(r)
	}

	key := c.key(origin, bucket)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert distance cache: %w", err)
	}

	return nil
}

func encodeDistance(r ports.DistanceResult) string {
	return strconv.Itoa(r.DistanceMeters) + ":" + strconv.Itoa(r.DurationSeconds)
}

func decodeDistance(s string) (ports.DistanceResult, error) {
	meters, seconds, ok := strings.Cut(s, ":")
	if !ok {
		return ports.DistanceResult{}, fmt.Errorf("malformed value %q", s)
	}
	m, err := strconv.Atoi(meters)
	if err != nil {
		return ports.DistanceResult{}, fmt.Errorf("malformed meters %q: %w", meters, err)
	}
	sec, err := strconv.Atoi(seconds)
	if err != nil {
		return ports.DistanceResult{}, fmt.Errorf("malformed seconds %q: %w", seconds, err)
	}
	return ports.DistanceResult{DistanceMeters: m, DurationSeconds: sec, Source: ports.SourceLive}, nil
}
