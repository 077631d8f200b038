package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"inventory-service/internal/models"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps the whole snapshot under a single key. A redis SET is
// atomic, which satisfies the whole-snapshot replacement contract.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore connects to redis and returns a snapshot store on the given key.
func NewRedisStore(addr, password string, db int, key string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{rdb: rdb, key: key}, nil
}

// Load fetches and decodes the snapshot. A missing key is an empty snapshot.
func (rs *RedisStore) Load(ctx context.Context) (*models.Snapshot, error) {
	data, err := rs.rdb.Get(ctx, rs.key).Bytes()
	if err == redis.Nil {
		return &models.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var sn models.Snapshot
	if err := json.Unmarshal(data, &sn); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &sn, nil
}

// Replace overwrites the snapshot key in one atomic SET.
func (rs *RedisStore) Replace(ctx context.Context, sn *models.Snapshot) error {
	data, err := json.Marshal(sn)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := rs.rdb.Set(ctx, rs.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Close closes the redis connection.
func (rs *RedisStore) Close() error {
	return rs.rdb.Close()
}
