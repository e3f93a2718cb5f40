package partition_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/partition"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SerializesSameScope(t *testing.T) {
	mgr := partition.NewManager()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := mgr.WithLock(ctx, "same", func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside, "writers of one scope must never overlap")
	assert.Equal(t, 0, mgr.Active())
}

func TestManager_IndependentScopesRunConcurrently(t *testing.T) {
	mgr := partition.NewManager()
	ctx := context.Background()

	entered := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = mgr.WithLock(ctx, "a", func(context.Context) error {
			close(entered)
			<-done
			return nil
		})
	}()
	<-entered

	ctxTimeout, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	err := mgr.WithLock(ctxTimeout, "b", func(context.Context) error { return nil })
	assert.NoError(t, err, "scope b must not wait for scope a")
	close(done)
}

func TestManager_PropagatesError(t *testing.T) {
	mgr := partition.NewManager()
	boom := errors.New("boom")
	err := mgr.WithLock(context.Background(), "k", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

type recordingLocker struct {
	mu       sync.Mutex
	locked   []string
	unlocked []string
	fail     error
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if l.fail != nil {
		return nil, l.fail
	}
	l.mu.Lock()
	l.locked = append(l.locked, key)
	l.mu.Unlock()
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocked = append(l.unlocked, key)
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &recordingLocker{}
	mgr := partition.NewManager(partition.WithLocker(locker), partition.WithTTL(time.Second))

	err := mgr.WithLock(context.Background(), "tenant", func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, []string{"scope:tenant"}, locker.locked)
	assert.Equal(t, []string{"scope:tenant"}, locker.unlocked)
}

func TestManager_DistributedLockerFailure(t *testing.T) {
	unavailable := errors.New("unavailable")
	mgr := partition.NewManager(partition.WithLocker(&recordingLocker{fail: unavailable}))

	called := false
	err := mgr.WithLock(context.Background(), "tenant", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, unavailable)
	assert.False(t, called)
}
