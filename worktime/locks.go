package worktime

import (
	"sync"

	"github.com/warp/worktime-engine/generic"
)

// =============================================================================
// PER-USER LOCKS
// =============================================================================

// UserLocks serializes work for one user while leaving other users free to
// run in parallel. Entries are reference counted and removed when the last
// holder releases, so the map only holds users with work in flight.
type UserLocks struct {
	mu    sync.Mutex
	locks map[generic.UserID]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[generic.UserID]*userLock)}
}

// Lock blocks until the user's lock is held and returns its release func.
func (l *UserLocks) Lock(userID generic.UserID) func() {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			ul.mu.Unlock()
			l.mu.Lock()
			ul.refs--
			if ul.refs == 0 {
				delete(l.locks, userID)
			}
			l.mu.Unlock()
		})
	}
}

// Len returns the number of users with a holder or waiter.
func (l *UserLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
