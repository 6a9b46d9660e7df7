package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "conversate"

// RedisCollection is a Collection stored as JSON strings plus a sorted-set
// index that remembers insertion order.
type RedisCollection[T any] struct {
	rdb  *redis.Client
	kind string
}

// NewRedisClient connects and pings addr
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// NewRedisCollection stores records under conversate:{kind}:{id}
func NewRedisCollection[T any](rdb *redis.Client, kind string) *RedisCollection[T] {
	return &RedisCollection[T]{rdb: rdb, kind: kind}
}

func (c *RedisCollection[T]) key(id string) string {
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, c.kind, id)
}

func (c *RedisCollection[T]) indexKey() string {
	return fmt.Sprintf("%s:%s:_index", redisKeyPrefix, c.kind)
}

func (c *RedisCollection[T]) seqKey() string {
	return fmt.Sprintf("%s:%s:_seq", redisKeyPrefix, c.kind)
}

func (c *RedisCollection[T]) Get(ctx context.Context, id string) (*T, error) {
	raw, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", c.kind, id, err)
	}

	var record T
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", c.kind, id, err)
	}
	return &record, nil
}

func (c *RedisCollection[T]) Put(ctx context.Context, id string, record *T) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", c.kind, id, err)
	}

	seq, err := c.rdb.Incr(ctx, c.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("save %s %s: %w", c.kind, id, err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.key(id), data, 0)
		// NX keeps the original position on updates.
		pipe.ZAddNX(ctx, c.indexKey(), redis.Z{Score: float64(seq), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save %s %s: %w", c.kind, id, err)
	}
	return nil
}

func (c *RedisCollection[T]) Delete(ctx context.Context, id string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.key(id))
		pipe.ZRem(ctx, c.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", c.kind, id, err)
	}
	return nil
}

// List returns records in insertion order. Dangling index entries and
// undecodable values are skipped.
func (c *RedisCollection[T]) List(ctx context.Context) ([]*T, error) {
	ids, err := c.rdb.ZRange(ctx, c.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.kind, err)
	}
	records := []*T{}
	if len(ids) == 0 {
		return records, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.kind, err)
	}

	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var record T
		if err := json.Unmarshal([]byte(s), &record); err != nil {
			continue
		}
		records = append(records, &record)
	}
	return records, nil
}
