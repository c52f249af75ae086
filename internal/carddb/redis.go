package carddb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ironsheep/card-scanner/internal/logger"
)

const (
	redisKeyPrefix = "card-scanner:card:"
	redisTTL       = 7 * 24 * time.Hour
	redisScanCount = 100
)

// RedisCache implements Cache on a Redis server, letting several scanner
// instances share lookups.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to the Redis server at addr. The connection is
// checked with PING; an unreachable server is an error.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	logger.Info(logger.Fields{"addr": addr}, "Connecting to Redis")

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, ttl: redisTTL}, nil
}

// Get returns the card stored under key.
func (r *RedisCache) Get(ctx context.Context, key string) (*CardInfo, error) {
	val, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	} else if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var card CardInfo
	if err := json.Unmarshal(val, &card); err != nil {
		return nil, fmt.Errorf("unmarshaling card: %w", err)
	}
	return &card, nil
}

// Set stores card under key with a one-week expiry.
func (r *RedisCache) Set(ctx context.Context, key string, card *CardInfo) error {
	data, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshaling card: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Clear deletes every key under the scanner's prefix.
func (r *RedisCache) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis del %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}

// Close closes the Redis connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
