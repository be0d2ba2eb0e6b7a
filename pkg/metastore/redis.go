package metastore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/log"
)

// RedisStore is the production MetaStore, backed by a Redis hash per file.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore dials addr (host:port) and returns a ready-to-use RedisStore.
func NewRedisStore(addr, password string, db int) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: client}
}

func (s *RedisStore) HSet(ctx context.Context, key string, fields ...string) error {
	if len(fields)%2 != 0 {
		return &InvalidFieldsError{Key: key}
	}
	pairs := make([]interface{}, len(fields))
	for i, f := range fields {
		pairs[i] = f
	}
	if err := s.client.HSet(ctx, key, pairs...).Err(); err != nil {
		log.Error().Err(err).Str("key", key).Msg("metastore: hset failed")
		return err
	}
	return nil
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := s.client.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

func (s *RedisStore) HDel(ctx context.Context, key, field string) error {
	return s.client.HDel(ctx, key, field).Err()
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Expire(ctx context.Context, key string, seconds int64) error {
	return s.client.Expire(ctx, key, time.Duration(seconds)*time.Second).Err()
}

// Keys lists every key matching prefix+"*" via a non-blocking SCAN cursor.
func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

func (s *RedisStore) ReplicaOf(ctx context.Context, addr string) error {
	host, port := "NO", "ONE"
	if addr != "" {
		host, port = splitHostPort(addr)
	}
	return s.client.SlaveOf(ctx, host, port).Err()
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func splitHostPort(addr string) (string, string) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i], addr[i+1:]
		}
	}
	return addr, ""
}

// InvalidFieldsError is returned when HSet is called with an odd number of
// field arguments.
type InvalidFieldsError struct {
	Key string
}

func (e *InvalidFieldsError) Error() string {
	return "metastore: odd number of field arguments for key " + e.Key
}
