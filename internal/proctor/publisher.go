package proctor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exproctor-backend/internal/config"
	"github.com/stemsi/exproctor-backend/internal/model"
)

// RedisPublisher fans proctoring events out on the exam's Redis channel.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher creates a new RedisPublisher.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// Publish implements AlertPublisher.
func (p *RedisPublisher) Publish(ctx context.Context, ev model.ProctorLiveEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal live event: %w", err)
	}
	return p.rdb.Publish(ctx, config.CacheKey.ExamProctorChannel(ev.ExamID.String()), data).Err()
}
