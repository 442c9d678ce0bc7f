package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// RedisHotCache stores JSON artifacts in Redis with a TTL.
type RedisHotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisHotCache(client *redis.Client, ttl time.Duration) *RedisHotCache {
	return &RedisHotCache{client: client, ttl: ttl}
}

func (c *RedisHotCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisHotCache) Set(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, b, c.ttl).Err()
}

func (c *RedisHotCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// HotKey is a fixed-length digest of the artifact kind and key tuple.
func HotKey(kind Kind, key CacheKey) string {
	sum := blake2b.Sum256([]byte(string(kind) + "\x00" + key.PlaylistID + "\x00" + key.VideoID + "\x00" + key.UserID))
	return "gencache:" + string(kind) + ":" + hex.EncodeToString(sum[:16])
}
