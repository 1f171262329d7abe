// internal/pkg/kvstore/store.go
package kvstore

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound 表示 key 不存在。
var ErrNotFound = errors.New("kvstore: key not found")

// Store 是库存、预留台账、支付台账和订单记录共用的键值存储抽象。
// 单个操作是原子的；跨 key 的一致性由调用方通过 keylock 保证。
type Store[V any] interface {
	Get(ctx context.Context, key string) (V, error)
	Put(ctx context.Context, key string, value V) error
	// PutIfAbsent 只在 key 不存在时写入。created 为 false 时返回已有的值。
	PutIfAbsent(ctx context.Context, key string, value V) (stored V, created bool, err error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]V, error)
}

// Memory 是进程内的 Store 实现。
type Memory[V any] struct {
	mu   sync.RWMutex
	data map[string]V
}

func NewMemory[V any]() *Memory[V] {
	return &Memory[V]{data: make(map[string]V)}
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		var zero V
		return zero, ErrNotFound
	}
	return v, nil
}

func (m *Memory[V]) Put(_ context.Context, key string, value V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory[V]) PutIfAbsent(_ context.Context, key string, value V) (V, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return existing, false, nil
	}
	m.data[key] = value
	return value, true, nil
}

func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// List 按 key 排序返回所有值。
func (m *Memory[V]) List(_ context.Context) ([]V, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.data[k])
	}
	return out, nil
}
