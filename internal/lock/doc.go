// Package lock provides the mutual exclusion used by matching.
//
// Two kinds of lock guard the match ledger's writers:
//
//   - the cycle lock, taken with TryLock, which rejects a second batch run
//     instead of queueing it
//   - per-user locks, taken with Lock, which serialize on-demand requests
//     for the same user while letting different users proceed in parallel
//
// # Implementations
//
// MemoryLocker keeps locks in process and is enough for a single API
// instance. RedisLocker uses SET NX PX with a random token, so several API
// instances (and the CLI) share one cycle lock:
//
//	locker, err := lock.NewRedisLocker(lock.DefaultConfig())
//	unlock, err := locker.TryLock(ctx, lock.Key("cycle"), time.Hour)
//	if errors.Is(err, lock.ErrLocked) {
//	    // someone else is running a cycle
//	}
//	defer unlock()
//
// Redis locks expire after their TTL so a crashed holder cannot wedge the
// system. Release is compare-and-delete: a holder whose lock already expired
// will not delete a newer holder's key.
package lock
