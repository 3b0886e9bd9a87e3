package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rehabflow/internal/config"
	"rehabflow/internal/models"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// RedisAttemptLog keeps per-booking notification attempts in a TTL-bounded list.
type RedisAttemptLog struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAttemptLog(client *redis.Client, ttl time.Duration) *RedisAttemptLog {
	return &RedisAttemptLog{client: client, ttl: ttl}
}

func attemptKey(bookingID string) string {
	return fmt.Sprintf("notify_attempts:%s", bookingID)
}

func (r *RedisAttemptLog) Record(ctx context.Context, attempt *models.NotificationAttempt) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt: %w", err)
	}

	key := attemptKey(attempt.BookingID)
	if err := r.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to record attempt in redis: %w", err)
	}
	if r.ttl > 0 {
		if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
			return fmt.Errorf("failed to set attempt ttl: %w", err)
		}
	}
	return nil
}

func (r *RedisAttemptLog) Attempts(ctx context.Context, bookingID string) ([]*models.NotificationAttempt, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	raw, err := r.client.LRange(ctx, attemptKey(bookingID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read attempts from redis: %w", err)
	}

	attempts := make([]*models.NotificationAttempt, 0, len(raw))
	for _, item := range raw {
		var attempt models.NotificationAttempt
		if err := json.Unmarshal([]byte(item), &attempt); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attempt: %w", err)
		}
		attempts = append(attempts, &attempt)
	}
	return attempts, nil
}
