package cartstore

import (
	"context"
	"errors"

	"github.com/ahmadzakiakmal/ecommerce/shoperr"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis connection pool
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// RedisStore keeps carts in Redis. The client's pool is shared by every
// cart session.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// DialRedis opens a pooled client and checks the server answers
func DialRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, shoperr.New(shoperr.ConnectionFailure, "Cache unreachable", err.Error())
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	args := make([]interface{}, 0, 2*len(fields))
	for field, value := range fields {
		args = append(args, field, value)
	}
	return wrap(s.client.HSet(ctx, key, args...).Err(), "Failed to write cart entry")
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	return fields, wrap(err, "Failed to read cart entry")
}

func (s *RedisStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	n, err := s.client.HIncrBy(ctx, key, field, delta).Result()
	return n, wrap(err, "Failed to update cart entry")
}

func (s *RedisStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := s.client.IncrBy(ctx, key, delta).Result()
	return n, wrap(err, "Failed to update cart total")
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap(err, "Failed to read cart total")
	}
	return value, true, nil
}

func (s *RedisStore) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	keys, next, err := s.client.Scan(ctx, cursor, match, count).Result()
	return keys, next, wrap(err, "Failed to scan cart")
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	return n, wrap(err, "Failed to delete cart keys")
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return wrap(s.client.Ping(ctx).Err(), "Cache unavailable")
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
