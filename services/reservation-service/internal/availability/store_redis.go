package availability

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "busy:"

// RedisStore shares snapshots between replicas. Entries carry a Redis expiry
// of twice the TTL; freshness is still decided by ComputedAt.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = redisKeyPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Load(ctx context.Context, key string) (*BusyInfo, bool, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var info BusyInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		// A corrupt entry is treated as a miss and overwritten on recompute.
		return nil, false, nil
	}
	return &info, true, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, info *BusyInfo, ttl time.Duration) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.prefix+key, raw, 2*ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
