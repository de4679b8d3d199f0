package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/galaxium/config"
	"github.com/redis/go-redis/v9"
)

// RedisSlot keeps one visitor's session in Redis, namespaced by session id.
type RedisSlot struct {
	client    *redis.Client
	sessionID string
	ttl       time.Duration
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
}

// NewRedisSlot stores keys under the session id. A zero ttl keeps them forever.
func NewRedisSlot(client *redis.Client, sessionID string, ttl time.Duration) *RedisSlot {
	return &RedisSlot{client: client, sessionID: sessionID, ttl: ttl}
}

func (r *RedisSlot) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (r *RedisSlot) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.key(key), value, r.ttl).Err()
}

func (r *RedisSlot) Clear(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *RedisSlot) key(key string) string {
	return fmt.Sprintf("session:%s:%s", r.sessionID, key)
}

var _ Slot = (*RedisSlot)(nil)
