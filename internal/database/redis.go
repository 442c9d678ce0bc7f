package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClients splits blocking queue reads and subscriptions from the client
// used for publishing and the hot cache.
type RedisClients struct {
	Queue  *redis.Client
	PubSub *redis.Client
	Cache  *redis.Client
}

func NewRedisClients(ctx context.Context, redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clients := &RedisClients{}
	for _, c := range []struct {
		name   string
		target **redis.Client
	}{
		{"queue", &clients.Queue},
		{"pubsub", &clients.PubSub},
		{"cache", &clients.Cache},
	} {
		o := *opt
		client := redis.NewClient(&o)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			clients.Close()
			return nil, fmt.Errorf("failed to ping Redis (%s): %w", c.name, err)
		}
		*c.target = client
	}

	return clients, nil
}

func (r *RedisClients) Close() {
	for _, c := range []*redis.Client{r.Queue, r.PubSub, r.Cache} {
		if c != nil {
			c.Close()
		}
	}
}
