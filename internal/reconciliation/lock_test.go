package reconciliation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_Serializes(t *testing.T) {
	l := NewMemoryLocker()
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "po_1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, l.slots)
}

func TestMemoryLocker_IndependentKeys(t *testing.T) {
	l := NewMemoryLocker()
	unlockA, err := l.Lock(context.Background(), "po_a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "po_b")
	require.NoError(t, err)
	unlockB()
}

func TestMemoryLocker_ContextCanceled(t *testing.T) {
	l := NewMemoryLocker()
	unlock, err := l.Lock(context.Background(), "po_1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "po_1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // releasing twice is harmless
	assert.Empty(t, l.slots)
}

// fakeRedis implements the commands RedisLocker issues.
type fakeRedis struct {
	redis.Cmdable
	mu   sync.Mutex
	keys map[string]string
}

func newFakeRedis() *fakeRedis { return &fakeRedis{keys: map[string]string{}} }

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[keys[0]] == fmt.Sprint(args[0]) {
		delete(f.keys, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedisLocker(t *testing.T) {
	rdb := newFakeRedis()
	l := NewRedisLocker(rdb, time.Minute)
	l.retry = time.Millisecond

	unlock, err := l.Lock(context.Background(), "po_1")
	require.NoError(t, err)
	assert.Contains(t, rdb.keys, "recon:fix-lock:po_1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "po_1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.NotContains(t, rdb.keys, "recon:fix-lock:po_1")

	unlock2, err := l.Lock(context.Background(), "po_1")
	require.NoError(t, err)
	unlock2()
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	rdb := newFakeRedis()
	l := NewRedisLocker(rdb, time.Minute)

	unlock, err := l.Lock(context.Background(), "po_1")
	require.NoError(t, err)
	// Lease expired and another process took the key.
	rdb.keys["recon:fix-lock:po_1"] = "someone-else"
	unlock()
	assert.Equal(t, "someone-else", rdb.keys["recon:fix-lock:po_1"])
}
