// internal/pkg/keylock/keylock.go
package keylock

import (
	"context"
	"slices"
	"sync"
)

// Locker 提供按 key 的互斥。Lock 阻塞直到获得锁或 ctx 结束。
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LockAll 按排序后的顺序依次加锁，避免多 key 之间死锁。
// 任一 key 加锁失败时会释放已经拿到的锁。
func LockAll(ctx context.Context, l Locker, keys ...string) (func(), error) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	unlocks := make([]func(), 0, len(sorted))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, key := range sorted {
		unlock, err := l.Lock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

// Mutex 是进程内的 Locker 实现。
type Mutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

func NewMutex() *Mutex {
	return &Mutex{locks: make(map[string]*entry)}
}

func (m *Mutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			m.release(key, e)
		})
	}, nil
}

func (m *Mutex) release(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}
