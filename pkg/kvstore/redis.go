package kvstore

import (
	"context"
	"errors"
	"strings"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 200

// RedisStore keeps entries under a namespace prefix so Keys and Clear never
// touch data belonging to anything else in the same database.
type RedisStore struct {
	client    *redis.Client
	cache     *cache.Cache[string]
	namespace string
}

func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	redisStore := redisstore.NewRedis(client)

	return &RedisStore{
		client:    client,
		cache:     cache.New[string](redisStore),
		namespace: namespace,
	}
}

func (s *RedisStore) fullKey(key string) string {
	return s.namespace + key
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.cache.Get(ctx, s.fullKey(key))
	if err != nil {
		if errors.Is(err, store.NotFound{}) {
			return "", ErrNotFound
		}
		return "", err
	}

	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value string) error {
	return s.cache.Set(ctx, s.fullKey(key), value)
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := s.cache.Delete(ctx, s.fullKey(key)); err != nil {
			return err
		}
	}

	return nil
}

func (s *RedisStore) scanKeys(ctx context.Context) ([]string, error) {
	var fullKeys []string

	iterator := s.client.Scan(ctx, 0, s.namespace+"*", scanBatchSize).Iterator()
	for iterator.Next(ctx) {
		fullKeys = append(fullKeys, iterator.Val())
	}

	return fullKeys, iterator.Err()
}

func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	fullKeys, err := s.scanKeys(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(fullKeys))
	for _, fullKey := range fullKeys {
		keys = append(keys, strings.TrimPrefix(fullKey, s.namespace))
	}

	return keys, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	fullKeys, err := s.scanKeys(ctx)
	if err != nil {
		return err
	}

	for start := 0; start < len(fullKeys); start += scanBatchSize {
		end := min(start+scanBatchSize, len(fullKeys))

		if err := s.client.Del(ctx, fullKeys[start:end]...).Err(); err != nil {
			return err
		}
	}

	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
