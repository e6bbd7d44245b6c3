package frontier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisVisited keeps the visited set in redis. Keys are prefix + sha256(url).
// Callers scope the prefix to one crawl run so a later run starts empty.
type RedisVisited struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	added  atomic.Int64
}

type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL of zero keeps keys forever.
	TTL time.Duration
}

func NewRedisClient(opts RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

func NewRedisVisited(client redis.Cmdable, keyPrefix string, ttl time.Duration) *RedisVisited {
	return &RedisVisited{client: client, prefix: keyPrefix, ttl: ttl}
}

func (r *RedisVisited) key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return r.prefix + hex.EncodeToString(sum[:])
}

// Add uses SETNX, which is atomic on the server.
func (r *RedisVisited) Add(ctx context.Context, url string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(url), url, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	if ok {
		r.added.Add(1)
	}
	return ok, nil
}

// Len counts URLs this process inserted, not the shared total.
func (r *RedisVisited) Len() int {
	return int(r.added.Load())
}

// Clear deletes every key under the prefix.
func (r *RedisVisited) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", 500).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (r *RedisVisited) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
