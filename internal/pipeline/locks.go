package pipeline

import "sync"

// UserLocks serializes pipeline runs per user so two concurrent submissions
// cannot race on the same training record. Runs for different users proceed
// independently.
type UserLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[string]*userLock)}
}

// Acquire blocks until the caller holds the lock for userId and returns the
// release function.
func (l *UserLocks) Acquire(userId string) func() {
	l.mu.Lock()
	lock, ok := l.locks[userId]
	if !ok {
		lock = &userLock{}
		l.locks[userId] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, userId)
		}
		l.mu.Unlock()
	}
}
