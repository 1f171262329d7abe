package keylock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutexSerializesSameKey(t *testing.T) {
	m := NewMutex()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(context.Background(), "order:1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, m.locks)
}

func TestMutexDifferentKeysDoNotBlock(t *testing.T) {
	m := NewMutex()
	unlockA, err := m.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := m.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestMutexHonoursContext(t *testing.T) {
	m := NewMutex()
	unlock, err := m.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnlockIsIdempotent(t *testing.T) {
	m := NewMutex()
	unlock, err := m.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
	unlock()

	again, err := m.Lock(context.Background(), "k")
	require.NoError(t, err)
	again()
}

type recordingLocker struct {
	mu    sync.Mutex
	order []string
	fail  string
}

func (r *recordingLocker) Lock(_ context.Context, key string) (func(), error) {
	if key == r.fail {
		return nil, context.Canceled
	}
	r.mu.Lock()
	r.order = append(r.order, "lock:"+key)
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.order = append(r.order, "unlock:"+key)
		r.mu.Unlock()
	}, nil
}

func TestLockAllSortsAndDedupes(t *testing.T) {
	r := &recordingLocker{}
	unlock, err := LockAll(context.Background(), r, "product:b", "product:a", "product:b")
	require.NoError(t, err)
	unlock()

	assert.Equal(t, []string{"lock:product:a", "lock:product:b", "unlock:product:b", "unlock:product:a"}, r.order)
}

func TestLockAllReleasesOnFailure(t *testing.T) {
	r := &recordingLocker{fail: "product:c"}
	_, err := LockAll(context.Background(), r, "product:c", "product:a", "product:b")
	require.Error(t, err)

	assert.Equal(t, []string{"lock:product:a", "lock:product:b", "unlock:product:b", "unlock:product:a"}, r.order)
}
