package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Dedup is a best-effort seen-set in front of the authoritative ledger.
type Dedup struct {
	Redis    *redis.Client
	Consumer string
}

func (d *Dedup) key(eventID string) string { return fmt.Sprintf(KeyDedup, d.Consumer, eventID) }

func (d *Dedup) Seen(ctx context.Context, eventID string) (bool, error) {
	if d == nil || d.Redis == nil {
		return false, nil
	}
	return Exists(ctx, d.Redis, d.key(eventID))
}

// Mark records eventID. It reports false if it was already marked.
func (d *Dedup) Mark(ctx context.Context, eventID string) (bool, error) {
	if d == nil || d.Redis == nil {
		return true, nil
	}
	return d.Redis.SetNX(ctx, d.key(eventID), "1", TTLDedup).Result()
}

// CachedStatus is the value stored under KeyOrderStatus.
type CachedStatus struct {
	Status  string `json:"status"`
	Version int64  `json:"version"`
}

const maxPutAttempts = 5

type StatusCache struct {
	Redis *redis.Client
}

func (c *StatusCache) Get(ctx context.Context, orderID string) (CachedStatus, bool, error) {
	var cs CachedStatus
	if c == nil || c.Redis == nil {
		return cs, false, nil
	}
	s, err := c.Redis.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return cs, false, nil
	}
	if err != nil {
		return cs, false, err
	}
	if err := json.Unmarshal([]byte(s), &cs); err != nil {
		return cs, false, err
	}
	return cs, true, nil
}

// Put stores cs unless the cache already holds a newer version. The read and
// the write run under WATCH, so a concurrent newer Put is never overwritten.
func (c *StatusCache) Put(ctx context.Context, orderID string, cs CachedStatus) error {
	if c == nil || c.Redis == nil {
		return nil
	}
	key := fmt.Sprintf(KeyOrderStatus, orderID)
	b, err := json.Marshal(cs)
	if err != nil {
		return err
	}
	put := func(tx *redis.Tx) error {
		s, err := tx.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		var cur CachedStatus
		if err == nil && json.Unmarshal([]byte(s), &cur) == nil && cur.Version > cs.Version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, TTLStatusCache)
			return nil
		})
		return err
	}
	for i := 0; i < maxPutAttempts; i++ {
		err = c.Redis.Watch(ctx, put, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("status cache put %s: %w", orderID, err)
}
