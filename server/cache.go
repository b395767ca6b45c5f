package server

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// Cache stores generated certificates.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error) // val, found, err
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
}

// CacheKey identifies the certificate generated from template for name.
func CacheKey(template []byte, name string) string {
	h, _ := blake2b.New256(nil) // unkeyed never fails
	h.Write(template)
	h.Write([]byte{0})
	h.Write([]byte(name))
	return "certfill:cert:" + hex.EncodeToString(h.Sum(nil))
}

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	client *redis.Client
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache connects to the server described by conf.
func NewRedisCache(conf *CacheConf) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Password: conf.PW,
		DB:       conf.DB,
	})
	log.Println("[INFO] redis cache initialized")
	return &RedisCache{client: client}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

// Close closes the connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
