package lib

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Deletes the key only while it still holds the caller's token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[redis] Error parsing connection string: %s\n", err.Error())
		return nil, err
	}
	return redis.NewClient(opt), nil
}

// RedisTokenCache keeps provider access tokens in redis so every replica shares one token.
type RedisTokenCache struct {
	rdb redis.Cmdable
}

func NewRedisTokenCache(rdb redis.Cmdable) *RedisTokenCache {
	return &RedisTokenCache{rdb: rdb}
}

func (c *RedisTokenCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisTokenCache) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, token, ttl).Err()
}

// RedisLocker gives one replica at a time an expiring claim on a key.
type RedisLocker struct {
	rdb   redis.Cmdable
	token func() string
}

func NewRedisLocker(rdb redis.Cmdable) *RedisLocker {
	return &RedisLocker{rdb: rdb, token: uuid.NewString}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := l.token()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		log.Printf("[redis] lock %s: %s\n", key, err.Error())
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.rdb.Eval(rctx, releaseScript, []string{key}, token).Err(); err != nil {
			log.Printf("[redis] unlock %s: %s\n", key, err.Error())
		}
	}, true, nil
}
