// Package redisadapt provides an optional Redis-backed Dedup Cache for
// multi-instance deployments, where the in-memory dedup.Cache (process-local)
// can't see duplicates forwarded by a sibling instance. Grounded on the
// go-redis/v9 client already present in the teacher's dependency graph
// (promoted here from an indirect to a directly exercised dependency).
package redisadapt

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupCache mirrors dedup.Cache's Add/Contains surface over a shared Redis
// instance, using SETNX semantics for the add-if-absent check.
type DedupCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewDedupCache connects to addr (dedicated DB index db) for a shared dedup
// namespace across gateway instances.
func NewDedupCache(addr, password string, db int, ttl time.Duration) *DedupCache {
	return &DedupCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl:    ttl,
		prefix: "dedup:",
	}
}

// Add reports whether textHash was newly inserted (true) or already present
// (false), atomically, via SET NX.
func (c *DedupCache) Add(ctx context.Context, textHash string) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.prefix+textHash, 1, c.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Contains checks presence without inserting.
func (c *DedupCache) Contains(ctx context.Context, textHash string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+textHash).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close releases the underlying connection pool.
func (c *DedupCache) Close() error {
	return c.client.Close()
}
