// Package cache provides the answer cache backends: Redis for shared
// deployments, an in-process LRU when no Redis is configured.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/corpusqa/corpusqa/internal/core/domain"
)

const answerKeyPrefix = "qa:answer:"

type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedis(addr string, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		logger: logger,
	}
}

func (r *Redis) Get(ctx context.Context, signature string) (domain.Answer, bool, error) {
	payload, err := r.client.Get(ctx, answerKeyPrefix+signature).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Answer{}, false, nil
	}
	if err != nil {
		return domain.Answer{}, false, fmt.Errorf("redis get: %w", err)
	}

	var answer domain.Answer
	if err := json.Unmarshal(payload, &answer); err != nil {
		return domain.Answer{}, false, fmt.Errorf("decode cached answer: %w", err)
	}
	return answer, true, nil
}

func (r *Redis) Put(ctx context.Context, signature string, answer domain.Answer, ttl time.Duration) error {
	payload, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if err := r.client.Set(ctx, answerKeyPrefix+signature, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
