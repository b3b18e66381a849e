// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/bureau-foundation/buildconsole/lib/schema/build"
)

// DefaultRedisPrefix namespaces the keys a RedisStore uses.
const DefaultRedisPrefix = "buildconsole"

// RedisStore keeps records in a hash keyed by build ID and orders them
// with a sorted set scored by timestamp in milliseconds. Several
// servers may share one store.
type RedisStore struct {
	client  redis.Cmdable
	records string
	order   string
}

// NewRedisStore returns a store using keys under prefix (default
// DefaultRedisPrefix).
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client:  client,
		records: prefix + ":builds",
		order:   prefix + ":builds:by_time",
	}
}

func (store *RedisStore) Append(ctx context.Context, log build.Log) error {
	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("marshaling build %s: %w", log.ID, err)
	}

	pipe := store.client.TxPipeline()
	pipe.HSet(ctx, store.records, log.ID, data)
	pipe.ZAdd(ctx, store.order, &redis.Z{Score: float64(log.Timestamp.UnixMilli()), Member: log.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storing build %s: %w", log.ID, err)
	}

	// Everything ranked below the newest MaxHistory goes.
	expired, err := store.client.ZRange(ctx, store.order, 0, -MaxHistory-1).Result()
	if err != nil {
		return fmt.Errorf("listing expired builds: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}
	pipe = store.client.TxPipeline()
	pipe.HDel(ctx, store.records, expired...)
	pipe.ZRemRangeByRank(ctx, store.order, 0, -MaxHistory-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("trimming history: %w", err)
	}
	return nil
}

func (store *RedisStore) List(ctx context.Context, limit int) ([]build.Log, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := store.client.ZRevRange(ctx, store.order, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}
	if len(ids) == 0 {
		return []build.Log{}, nil
	}

	values, err := store.client.HMGet(ctx, store.records, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading builds: %w", err)
	}
	logs := make([]build.Log, 0, len(values))
	for i, value := range values {
		// A nil value is an index entry whose record was removed by
		// a concurrent Delete.
		text, ok := value.(string)
		if !ok {
			continue
		}
		var log build.Log
		if err := json.Unmarshal([]byte(text), &log); err != nil {
			return nil, fmt.Errorf("parsing build %s: %w", ids[i], err)
		}
		logs = append(logs, log)
	}
	return logs, nil
}

func (store *RedisStore) Delete(ctx context.Context, id string) error {
	pipe := store.client.TxPipeline()
	removed := pipe.HDel(ctx, store.records, id)
	pipe.ZRem(ctx, store.order, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting build %s: %w", id, err)
	}
	if removed.Val() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (store *RedisStore) Clear(ctx context.Context) error {
	if err := store.client.Del(ctx, store.records, store.order).Err(); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}
