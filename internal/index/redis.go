package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists the index as a single JSON value under one key. Meant
// for deployments where the index must outlive the host; concurrent writers
// still get last-writer-wins, per the store contract.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore connects to Redis at addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return &RedisStore{rdb: rdb, key: "jobscout:" + indexKey}, nil
}

func (s *RedisStore) Load(ctx context.Context) (*Index, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading index from redis: %w", err)
	}
	return decode(data)
}

func (s *RedisStore) Save(ctx context.Context, ix *Index) error {
	data, err := encode(ix)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("saving index to redis: %w", err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
