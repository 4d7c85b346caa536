package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/brokerx/marketfeed/internal/models"
	"github.com/brokerx/marketfeed/pkg/utils/zaplogger"
	"github.com/redis/go-redis/v9"
)

// PublishService mirrors each tick's bulk envelope to a Redis channel so
// other internal services can consume the feed without a socket session
type PublishService struct {
	redisClient *redis.Client
	channel     string
}

// NewPublishService creates a new publish service
func NewPublishService(redisClient *redis.Client, channel string) *PublishService {
	return &PublishService{
		redisClient: redisClient,
		channel:     channel,
	}
}

// PublishBulkEnvelope publishes one bulk envelope to the Redis channel.
// Best effort: failures are logged and the tick continues.
func (s *PublishService) PublishBulkEnvelope(envelope models.Envelope) {
	data, err := json.Marshal(envelope)
	if err != nil {
		zaplogger.Error("Failed to marshal bulk envelope", zaplogger.Fields{
			"error": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.redisClient.Publish(ctx, s.channel, data).Err(); err != nil {
		zaplogger.Error("Failed to publish to Redis", zaplogger.Fields{
			"channel": s.channel,
			"error":   err.Error(),
		})
	}
}
