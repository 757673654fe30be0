package identifier

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisReserver struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
}

func NewRedisReserver(client *redis.Client, ttl time.Duration, timeout time.Duration) *RedisReserver {
	return &RedisReserver{
		client:  client,
		ttl:     ttl,
		timeout: timeout,
	}
}

func (r *RedisReserver) Reserve(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.client.SetNX(ctx, "workzen_reservation_"+key, 1, r.ttl).Result()
}
