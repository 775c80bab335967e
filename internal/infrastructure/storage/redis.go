package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"estatesync/pkg/errors"
)

// Redis persists snapshots in a Redis instance, which lets several hosts on
// the same machine share one cache. Entries carry no Redis-side TTL; the
// cache layer owns staleness.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr string) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
	}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Storage(fmt.Sprintf("redis get %s", key), err)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return errors.Storage(fmt.Sprintf("redis set %s", key), err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return errors.Storage(fmt.Sprintf("redis del %s", key), err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
