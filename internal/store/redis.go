package store

import (
  "context"
  "time"

  "github.com/redis/go-redis/v9"
)

// NewRedis connects a Redis client.
// Args:
//   addr: Redis address.
//   password: Redis password.
//   db: Redis database index.
// Returns:
//   *redis.Client: Connected client.
//   error: Error when the server is unreachable.
func NewRedis(addr, password string, db int) (*redis.Client, error) {
  client := redis.NewClient(&redis.Options{
    Addr:     addr,
    Password: password,
    DB:       db,
  })

  ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
  defer cancel()
  if err := client.Ping(ctx).Err(); err != nil {
    return nil, err
  }
  return client, nil
}

const runLockKey = "immoadmin:sync:running"

// RedisRunLock serializes reconciliation runs across replicas. The TTL
// releases the lock if a replica dies mid-run.
type RedisRunLock struct {
  client *redis.Client
  ttl    time.Duration
}

// NewRedisRunLock creates a run lock.
// Args:
//   client: Redis client.
// Returns:
//   *RedisRunLock: Initialized lock.
func NewRedisRunLock(client *redis.Client) *RedisRunLock {
  return &RedisRunLock{client: client, ttl: 30 * time.Minute}
}

// Acquire takes the lock, returning false when another run holds it.
func (l *RedisRunLock) Acquire(ctx context.Context) (bool, error) {
  return l.client.SetNX(ctx, runLockKey, "1", l.ttl).Result()
}

// Release frees the lock.
func (l *RedisRunLock) Release(ctx context.Context) error {
  return l.client.Del(ctx, runLockKey).Err()
}
