// Package redisstore is a thin key/value layer over go-redis. Non-string values
// are stored as JSON.
package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb redis.UniversalClient
}

func New(addr, password string, db int) *Store {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

func NewWithClient(rdb redis.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// Get returns the raw stored string. ok is false when the key is missing.
func (s *Store) Get(ctx context.Context, key string) (val string, ok bool, err error) {
	val, err = s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "redis get %s", key)
	}
	return val, true, nil
}

// GetJSON decodes the stored value into dst.
func (s *Store) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	val, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		return false, errors.Wrapf(err, "decode %s", key)
	}
	return true, nil
}

// Set stores value with an optional expiry (0 keeps it forever).
func (s *Store) Set(ctx context.Context, key string, value any, expiry time.Duration) error {
	v, err := encode(value)
	if err != nil {
		return err
	}
	return errors.Wrapf(s.rdb.Set(ctx, key, v, expiry).Err(), "redis set %s", key)
}

// Delete removes keys and reports whether any existed.
func (s *Store) Delete(ctx context.Context, keys ...string) (bool, error) {
	n, err := s.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis del")
	}
	return n > 0, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, errors.Wrapf(err, "redis exists %s", key)
	}
	return n > 0, nil
}

func (s *Store) HashGet(ctx context.Context, key, field string) (string, bool, error) {
	val, err := s.rdb.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "redis hget %s.%s", key, field)
	}
	return val, true, nil
}

// HashSet reports whether the field was newly created.
func (s *Store) HashSet(ctx context.Context, key, field string, value any) (bool, error) {
	v, err := encode(value)
	if err != nil {
		return false, err
	}
	n, err := s.rdb.HSet(ctx, key, field, v).Result()
	if err != nil {
		return false, errors.Wrapf(err, "redis hset %s.%s", key, field)
	}
	return n > 0, nil
}

// Flush clears the selected database.
func (s *Store) Flush(ctx context.Context) error {
	return errors.Wrap(s.rdb.FlushDB(ctx).Err(), "redis flushdb")
}

func encode(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return "", errors.Wrap(err, "encode value")
	}
	return string(b), nil
}
