package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrLocked is returned by TryLock when the key is already held.
	ErrLocked = errors.New("lock: already held")

	// ErrUnavailable is returned when the lock backend cannot be reached.
	ErrUnavailable = errors.New("lock: backend unavailable")
)

// KeyPrefix namespaces every lock key.
const KeyPrefix = "nemesis:lock:"

// Key returns the namespaced lock key for a resource.
func Key(resource string) string {
	return KeyPrefix + resource
}

// UserKey returns the lock key serializing on-demand matching for a user.
func UserKey(userID string) string {
	return Key("find-enemy:" + userID)
}

// Unlock releases a held lock. Calling it more than once is harmless.
type Unlock func()

// Locker acquires named locks.
type Locker interface {
	// TryLock acquires key or fails immediately with ErrLocked.
	TryLock(ctx context.Context, key string, ttl time.Duration) (Unlock, error)
	// Lock waits until key is free or ctx is done.
	Lock(ctx context.Context, key string, ttl time.Duration) (Unlock, error)
}

// MemoryLocker is an in-process Locker. The TTL is ignored: a holder in the
// same process always releases through its deferred Unlock.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

// NewMemoryLocker creates an empty in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]chan struct{})}
}

// TryLock acquires key if nobody holds it
func (l *MemoryLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Unlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, ErrLocked
	}
	return l.acquireLocked(key), nil
}

// Lock blocks until key is free, then acquires it
func (l *MemoryLocker) Lock(ctx context.Context, key string, ttl time.Duration) (Unlock, error) {
	for {
		l.mu.Lock()
		released, ok := l.held[key]
		if !ok {
			unlock := l.acquireLocked(key)
			l.mu.Unlock()
			return unlock, nil
		}
		l.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// acquireLocked must be called with l.mu held.
func (l *MemoryLocker) acquireLocked(key string) Unlock {
	released := make(chan struct{})
	l.held[key] = released

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
			close(released)
		})
	}
}
