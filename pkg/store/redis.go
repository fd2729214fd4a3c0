package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/treeform/nimmy/pkg/vm"
)

// CachedStore is a read-through breakpoint cache fronting another
// vm.Store: breakpoint reads are served from redis when present, and
// writes update both redis and the backing store; run history always
// goes straight to the backing store, since it's write-once and has no
// hot-read path worth caching.
type CachedStore struct {
	backing vm.Store
	redis   *redis.Client
	ttl     time.Duration
}

// NewCachedStore wraps backing with a redis-backed breakpoint cache at
// addr. ttl bounds how long a cached breakpoint set is trusted before
// falling back to backing (0 means never expire).
func NewCachedStore(backing vm.Store, addr string, ttl time.Duration) *CachedStore {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &CachedStore{backing: backing, redis: client, ttl: ttl}
}

func breakpointCacheKey(sourceHash string) string {
	return "nimmy:breakpoints:" + sourceHash
}

// LoadBreakpoints checks redis first, falling back to and populating
// from the backing store on a cache miss.
func (c *CachedStore) LoadBreakpoints(sourceHash string) ([]int, error) {
	ctx := context.Background()
	key := breakpointCacheKey(sourceHash)
	cached, err := c.redis.SMembers(ctx, key).Result()
	if err == nil && len(cached) > 0 {
		lines := make([]int, 0, len(cached))
		for _, s := range cached {
			if n, err := strconv.Atoi(s); err == nil {
				lines = append(lines, n)
			}
		}
		return lines, nil
	}

	lines, err := c.backing.LoadBreakpoints(sourceHash)
	if err != nil {
		return nil, err
	}
	c.populateCache(ctx, key, lines)
	return lines, nil
}

func (c *CachedStore) populateCache(ctx context.Context, key string, lines []int) {
	if len(lines) == 0 {
		return
	}
	members := make([]interface{}, len(lines))
	for i, l := range lines {
		members[i] = l
	}
	pipe := c.redis.Pipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, members...)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	pipe.Exec(ctx)
}

// SaveBreakpoints writes through to both redis and the backing store.
func (c *CachedStore) SaveBreakpoints(sourceHash string, lines []int) error {
	if err := c.backing.SaveBreakpoints(sourceHash, lines); err != nil {
		return err
	}
	key := breakpointCacheKey(sourceHash)
	c.redis.Del(context.Background(), key)
	c.populateCache(context.Background(), key, lines)
	return nil
}

// RecordRun always writes through directly to the backing store.
func (c *CachedStore) RecordRun(rec vm.RunRecord) error {
	return c.backing.RecordRun(rec)
}

// Close closes the redis client. The backing store's own lifecycle is
// the caller's responsibility.
func (c *CachedStore) Close() error {
	return c.redis.Close()
}
