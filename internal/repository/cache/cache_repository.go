package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/domain/repository"
)

const (
	hubsKeyPrefix    = "hubs:list:"
	refetchKeyPrefix = "hubs:refetch:"
)

func hubsKey(municipality string) string {
	return hubsKeyPrefix + municipality
}

func refetchKey(municipality string) string {
	return refetchKeyPrefix + municipality
}

type cacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

func NewCacheRepository(redis *Redis) repository.CacheRepository {
	return &cacheRepository{
		client: redis.Client(),
		logger: redis.logger,
	}
}

func (r *cacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil // Cache miss
	}
	if err != nil {
		r.logger.Error("Failed to get from cache", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("cache get error: %w", err)
	}

	r.logger.Debug("Cache hit", zap.String("key", key))
	return val, nil
}

func (r *cacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Error("Failed to set cache", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache set error: %w", err)
	}

	r.logger.Debug("Cache set", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

func (r *cacheRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Error("Failed to delete from cache", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache delete error: %w", err)
	}

	r.logger.Debug("Cache deleted", zap.String("key", key))
	return nil
}

func (r *cacheRepository) GetHubs(ctx context.Context, municipality string) ([]domain.Hub, error) {
	data, err := r.Get(ctx, hubsKey(municipality))
	if err != nil || data == nil {
		return nil, err
	}

	var hubs []domain.Hub
	if err := json.Unmarshal(data, &hubs); err != nil {
		// Битая запись считается промахом и удаляется
		r.logger.Warn("Dropping undecodable hub list from cache",
			zap.String("municipality", municipality),
			zap.Error(err))
		_ = r.Delete(ctx, hubsKey(municipality))
		return nil, nil
	}
	return hubs, nil
}

func (r *cacheRepository) SetHubs(ctx context.Context, municipality string, hubs []domain.Hub, ttl time.Duration) error {
	data, err := json.Marshal(hubs)
	if err != nil {
		return fmt.Errorf("failed to marshal hubs: %w", err)
	}
	return r.Set(ctx, hubsKey(municipality), data, ttl)
}

// InvalidateHubs удаляет список и увеличивает счётчик в одной транзакции
func (r *cacheRepository) InvalidateHubs(ctx context.Context, municipality string) (int64, error) {
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, hubsKey(municipality))
		incr = pipe.Incr(ctx, refetchKey(municipality))
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to invalidate hubs", zap.String("municipality", municipality), zap.Error(err))
		return 0, fmt.Errorf("cache invalidate error: %w", err)
	}

	r.logger.Debug("Hubs invalidated",
		zap.String("municipality", municipality),
		zap.Int64("refetch_count", incr.Val()))
	return incr.Val(), nil
}

func (r *cacheRepository) RefetchCounter(ctx context.Context, municipality string) (int64, error) {
	val, err := r.client.Get(ctx, refetchKey(municipality)).Int64()
	if stderrors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		r.logger.Error("Failed to read refetch counter", zap.String("municipality", municipality), zap.Error(err))
		return 0, fmt.Errorf("cache get error: %w", err)
	}
	return val, nil
}
