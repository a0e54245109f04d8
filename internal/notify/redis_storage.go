package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ecocommute/internal/models"
)

// RedisStorage persists the sequence under a single namespaced key.
type RedisStorage struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

func NewRedisStorage(addr, password, key string) *RedisStorage {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisStorage{client: c, key: key, timeout: 2 * time.Second}
}

func (r *RedisStorage) Load(ctx context.Context) ([]models.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	b, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var list []models.Notification
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *RedisStorage) Save(ctx context.Context, list []models.Notification) error {
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.client.Set(ctx, r.key, b, 0).Err()
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStorage) Close() error { return r.client.Close() }
