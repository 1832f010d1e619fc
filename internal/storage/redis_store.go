package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quest-server/internal/models"
)

var _ SessionStore = (*RedisStore)(nil)

// RedisStore хранит записи сессий в Redis.
type RedisStore struct {
	client *redis.Client
	codec  *Codec
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore создает хранилище. ttl == 0 означает хранение без срока.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		codec:  MustCodec(),
		ttl:    ttl,
		logger: logger.Named("RedisSessionStore"),
	}
}

func (s *RedisStore) Load(ctx context.Context, wallet string) (*models.SessionRecord, error) {
	key := models.StorageKey(wallet)
	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("Failed to load session record", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	rec, err := s.codec.Decode(payload)
	if err != nil {
		s.logger.Warn("Corrupt session record", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	return rec, nil
}

func (s *RedisStore) Save(ctx context.Context, wallet string, rec *models.SessionRecord) error {
	key := models.StorageKey(wallet)
	payload, err := s.codec.Encode(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		s.logger.Error("Failed to save session record", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	s.logger.Debug("Session record saved", zap.String("key", key), zap.Int("bytes", len(payload)))
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, wallet string) error {
	key := models.StorageKey(wallet)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
