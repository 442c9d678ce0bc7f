package services

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tubetrack-backend/internal/models"
)

// AnonymousChannel carries events for a shell that has not signed in.
const AnonymousChannel = "local"

type Publisher interface {
	PublishUpdate(ctx context.Context, userID string, msg models.WSMessage)
}

// RedisPublisher fans events out to the WebSocket hub via Redis pub/sub.
type RedisPublisher struct {
	redis *redis.Client
	log   *zap.Logger
}

func NewRedisPublisher(redisClient *redis.Client, log *zap.Logger) *RedisPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisPublisher{redis: redisClient, log: log}
}

func UpdatesChannel(userID string) string {
	if userID == "" {
		userID = AnonymousChannel
	}
	return "user_updates:" + userID
}

// PublishUpdate sends a WebSocket update via Redis pub/sub
func (p *RedisPublisher) PublishUpdate(ctx context.Context, userID string, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		p.log.Warn("encode ws message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	if err := p.redis.Publish(context.WithoutCancel(ctx), UpdatesChannel(userID), string(data)).Err(); err != nil {
		p.log.Warn("publish ws message", zap.String("type", msg.Type), zap.Error(err))
	}
}
