package localcache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps values without expiry; the cache is a durability fallback, not a TTL cache.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, mapRedisErr(err)
	}

	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return mapRedisErr(s.rdb.Set(ctx, key, value, 0).Err())
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return mapRedisErr(s.rdb.Del(ctx, key).Err())
}

func mapRedisErr(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return errors.Join(ErrStoreClosed, err)
	}
	return err
}
