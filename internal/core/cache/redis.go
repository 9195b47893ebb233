package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"allergen-guard/internal/infrastructure/config"
	"allergen-guard/internal/pkg/common"

	"github.com/go-redis/redis/v8"
)

// RedisCache Redis 快取服務
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis 創建 Redis 快取服務
func NewRedis(cfg *config.CacheConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisWithClient(client, cfg.TTL), nil
}

// NewRedisWithClient 使用既有連線建立快取
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get 獲取緩存
func (s *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.generateKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			common.LogCacheMiss("redis", key)
			return nil, common.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}
	common.LogCacheHit("redis", key)
	return data, nil
}

// Set 設置緩存
func (s *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.generateKey(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Close 關閉連線
func (s *RedisCache) Close() error {
	return s.client.Close()
}

// generateKey 生成緩存鍵
func (s *RedisCache) generateKey(key string) string {
	return "allergen-guard:provider:" + key
}

// Ping 檢查 Redis 連線，供就緒檢查使用
func (s *RedisCache) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
