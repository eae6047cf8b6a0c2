package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/laptime/pkg/predictor"
)

// RedisStore keeps bundles as JSON values in Redis
type RedisStore struct {
	log         logrus.FieldLogger
	redisClient *redis.Client
	keyPrefix   string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis backed store
func NewRedisStore(log logrus.FieldLogger, redisClient *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{
		log:         log.WithField("component", "redis_store"),
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
	}
}

// Key returns the Redis key a bundle key is stored under
func (s *RedisStore) Key(key string) string {
	return s.keyPrefix + key
}

// Save stores the bundle without expiry
func (s *RedisStore) Save(ctx context.Context, key string, b *predictor.Bundle) (err error) {
	defer func() { record(BackendRedis, "save", err) }()

	if err := checkKey(key); err != nil {
		return err
	}

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}

	if err := s.redisClient.Set(ctx, s.Key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store bundle: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"key":      s.Key(key),
		"model_id": b.ID,
	}).Info("Saved model bundle")

	return nil
}

// Load retrieves the bundle stored under key
func (s *RedisStore) Load(ctx context.Context, key string) (b *predictor.Bundle, err error) {
	defer func() { record(BackendRedis, "load", err) }()

	if err := checkKey(key); err != nil {
		return nil, err
	}

	data, err := s.redisClient.Get(ctx, s.Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.Key(key))
		}

		return nil, fmt.Errorf("failed to fetch bundle: %w", err)
	}

	var bundle predictor.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("failed to decode bundle %s: %w", s.Key(key), err)
	}

	return &bundle, nil
}

// Delete removes the bundle stored under key
func (s *RedisStore) Delete(ctx context.Context, key string) (err error) {
	defer func() { record(BackendRedis, "delete", err) }()

	if err := checkKey(key); err != nil {
		return err
	}

	n, err := s.redisClient.Del(ctx, s.Key(key)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete bundle: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, s.Key(key))
	}

	return nil
}
