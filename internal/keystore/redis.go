package keystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// claimRetries bounds the optimistic retry loop when a concurrent writer
// touches the watched key between read and commit.
const claimRetries = 16

// RedisStore implements Store on a redis instance. Claim and ReleaseIfOwned
// use WATCH/MULTI/EXEC so the read-check-write runs as a single-key
// transaction; the retry on contention happens here, not in callers.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keystore get %s: %w", key, err)
	}
	return val, nil
}

func (s *RedisStore) Claim(ctx context.Context, key, owner string) (bool, error) {
	var acquired bool

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil && current != owner {
			// Taken by someone else: abort without touching the key.
			acquired = false
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, owner, 0)
			return nil
		})
		if err == nil {
			acquired = true
		}
		return err
	}

	for i := 0; i < claimRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("keystore claim %s: %w", key, err)
		}
		return acquired, nil
	}
	return false, fmt.Errorf("keystore claim %s: %w", key, redis.TxFailedErr)
}

func (s *RedisStore) ReleaseIfOwned(ctx context.Context, key, owner string) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if current != owner {
			// Someone else holds the key now; a stale release must not
			// destroy their claim.
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}

	for i := 0; i < claimRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("keystore release %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("keystore release %s: %w", key, redis.TxFailedErr)
}

func (s *RedisStore) GetFields(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("keystore get fields %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return fields, nil
}

func (s *RedisStore) SetFields(ctx context.Context, key string, fields map[string]interface{}) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, flatten(fields)...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("keystore set fields %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) UpdateFields(ctx context.Context, key string, fields map[string]interface{}) error {
	if err := s.rdb.HSet(ctx, key, flatten(fields)...).Err(); err != nil {
		return fmt.Errorf("keystore update fields %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("keystore delete %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := s.rdb.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("keystore keys %s: %w", pattern, err)
	}
	return keys, nil
}

func flatten(fields map[string]interface{}) []interface{} {
	flat := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		flat = append(flat, k, v)
	}
	return flat
}
