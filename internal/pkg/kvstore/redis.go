// internal/pkg/kvstore/redis.go
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Redis 把值以 JSON 存在 "<prefix>:<key>"，并用集合 "<prefix>:index" 维护 key 列表。
type Redis[V any] struct {
	client redis.UniversalClient
	prefix string
}

func NewRedis[V any](client redis.UniversalClient, prefix string) *Redis[V] {
	return &Redis[V]{client: client, prefix: prefix}
}

func (r *Redis[V]) key(k string) string { return r.prefix + ":" + k }

func (r *Redis[V]) indexKey() string { return r.prefix + ":index" }

func (r *Redis[V]) Get(ctx context.Context, key string) (V, error) {
	var v V
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return v, ErrNotFound
	}
	if err != nil {
		return v, pkgerrors.Wrapf(err, "redis get %s", r.key(key))
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, pkgerrors.Wrapf(err, "decode %s", r.key(key))
	}
	return v, nil
}

func (r *Redis[V]) Put(ctx context.Context, key string, value V) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return pkgerrors.Wrapf(err, "encode %s", r.key(key))
	}
	if err := r.client.Set(ctx, r.key(key), raw, 0).Err(); err != nil {
		return pkgerrors.Wrapf(err, "redis set %s", r.key(key))
	}
	if err := r.client.SAdd(ctx, r.indexKey(), key).Err(); err != nil {
		return pkgerrors.Wrapf(err, "redis sadd %s", r.indexKey())
	}
	return nil
}

func (r *Redis[V]) PutIfAbsent(ctx context.Context, key string, value V) (V, bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return value, false, pkgerrors.Wrapf(err, "encode %s", r.key(key))
	}
	created, err := r.client.SetNX(ctx, r.key(key), raw, 0).Result()
	if err != nil {
		return value, false, pkgerrors.Wrapf(err, "redis setnx %s", r.key(key))
	}
	if !created {
		existing, err := r.Get(ctx, key)
		return existing, false, err
	}
	if err := r.client.SAdd(ctx, r.indexKey(), key).Err(); err != nil {
		return value, true, pkgerrors.Wrapf(err, "redis sadd %s", r.indexKey())
	}
	return value, true, nil
}

func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return pkgerrors.Wrapf(err, "redis del %s", r.key(key))
	}
	if err := r.client.SRem(ctx, r.indexKey(), key).Err(); err != nil {
		return pkgerrors.Wrapf(err, "redis srem %s", r.indexKey())
	}
	return nil
}

// List 读取索引集合里的全部 key，按 key 排序返回。索引里残留但已删除的 key 会被跳过。
func (r *Redis[V]) List(ctx context.Context) ([]V, error) {
	keys, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "redis smembers %s", r.indexKey())
	}
	if len(keys) == 0 {
		return []V{}, nil
	}
	sort.Strings(keys)

	cmds := make([]*redis.StringCmd, len(keys))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = pipe.Get(ctx, r.key(k))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, pkgerrors.Wrap(err, "redis pipeline get")
	}

	out := make([]V, 0, len(keys))
	for i, cmd := range cmds {
		raw, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "redis get %s", r.key(keys[i]))
		}
		var v V
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, pkgerrors.Wrapf(err, "decode %s", r.key(keys[i]))
		}
		out = append(out, v)
	}
	return out, nil
}
