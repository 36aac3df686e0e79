package lock

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// MemoryLocker
// ============================================================================

func TestMemoryLocker_TryLock_RejectsSecondHolder(t *testing.T) {
	t.Parallel()

	l := NewMemoryLocker()
	ctx := context.Background()

	unlock, err := l.TryLock(ctx, Key("cycle"), time.Minute)
	require.NoError(t, err)

	_, err = l.TryLock(ctx, Key("cycle"), time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	unlock()

	again, err := l.TryLock(ctx, Key("cycle"), time.Minute)
	require.NoError(t, err)
	again()
}

func TestMemoryLocker_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	l := NewMemoryLocker()
	ctx := context.Background()

	a, err := l.TryLock(ctx, UserKey("user:a"), time.Minute)
	require.NoError(t, err)
	defer a()

	b, err := l.TryLock(ctx, UserKey("user:b"), time.Minute)
	require.NoError(t, err)
	defer b()
}

func TestMemoryLocker_UnlockTwiceIsHarmless(t *testing.T) {
	t.Parallel()

	l := NewMemoryLocker()
	unlock, err := l.TryLock(context.Background(), "k", time.Minute)
	require.NoError(t, err)

	unlock()
	assert.NotPanics(t, func() { unlock() })
}

func TestMemoryLocker_Lock_WaitsForRelease(t *testing.T) {
	t.Parallel()

	l := NewMemoryLocker()
	ctx := context.Background()

	first, err := l.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := l.Lock(ctx, "k", time.Minute)
		if err == nil {
			second()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock should block while first is held")
	case <-time.After(50 * time.Millisecond):
	}

	first()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock should acquire after release")
	}
}

func TestMemoryLocker_Lock_HonorsContext(t *testing.T) {
	t.Parallel()

	l := NewMemoryLocker()
	held, err := l.Lock(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	defer held()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Lock(ctx, "k", time.Minute)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestMemoryLocker_Lock_SerializesConcurrentHolders(t *testing.T) {
	t.Parallel()

	l := NewMemoryLocker()
	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "k", time.Minute)
			if err != nil {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

// ============================================================================
// RedisLocker (requires TEST_REDIS_HOST)
// ============================================================================

func testRedisLocker(t *testing.T) *RedisLocker {
	t.Helper()

	host := os.Getenv("TEST_REDIS_HOST")
	if host == "" {
		t.Skip("TEST_REDIS_HOST not set")
	}
	cfg := DefaultConfig()
	cfg.Host = host
	if p := os.Getenv("TEST_REDIS_PORT"); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			cfg.Port = port
		}
	}
	cfg.RetryInterval = 10 * time.Millisecond

	l, err := NewRedisLocker(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRedisLocker_TryLock_RejectsSecondHolder(t *testing.T) {
	l := testRedisLocker(t)
	ctx := context.Background()
	key := Key("test:" + t.Name() + ":" + strconv.FormatInt(time.Now().UnixNano(), 10))

	unlock, err := l.TryLock(ctx, key, 5*time.Second)
	require.NoError(t, err)

	_, err = l.TryLock(ctx, key, 5*time.Second)
	assert.ErrorIs(t, err, ErrLocked)

	unlock()

	again, err := l.TryLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	again()
}

func TestRedisLocker_Lock_AcquiresAfterExpiry(t *testing.T) {
	l := testRedisLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	key := Key("test:" + t.Name() + ":" + strconv.FormatInt(time.Now().UnixNano(), 10))

	_, err := l.TryLock(ctx, key, 200*time.Millisecond)
	require.NoError(t, err)

	unlock, err := l.Lock(ctx, key, time.Second)
	require.NoError(t, err)
	unlock()
}

func TestRedisLocker_RejectsBadArguments(t *testing.T) {
	l := testRedisLocker(t)

	_, err := l.TryLock(context.Background(), "", time.Second)
	assert.Error(t, err)

	_, err = l.TryLock(context.Background(), "k", 0)
	assert.Error(t, err)
}
