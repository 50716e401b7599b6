package lockmgr

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// keyLock is a mutex shared by everyone interested in one key.
// refs counts holders and waiters, the entry is removed once it drops to zero.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

type lockMgrImpl struct {
	locks *xsync.MapOf[string, *keyLock]
}

// NewLockManager creates an empty lock manager. Locks are created on first
// use and dropped when nobody holds or waits for them anymore.
func NewLockManager() ILockManager {
	return &lockMgrImpl{
		locks: xsync.NewMapOf[string, *keyLock](),
	}
}

// acquire takes a reference on the key lock, creating it if necessary
func (lm *lockMgrImpl) acquire(key string) *keyLock {
	var l *keyLock
	lm.locks.Compute(key, func(old *keyLock, loaded bool) (*keyLock, bool) {
		if !loaded {
			old = &keyLock{}
		}
		old.refs++
		l = old
		return old, false
	})
	return l
}

// release drops a reference and removes the lock once unused
func (lm *lockMgrImpl) release(key string) {
	lm.locks.Compute(key, func(old *keyLock, loaded bool) (*keyLock, bool) {
		if !loaded {
			return nil, true
		}
		old.refs--
		return old, old.refs <= 0
	})
}

func (lm *lockMgrImpl) Lock(key string) func() {
	l := lm.acquire(key)
	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			lm.release(key)
		})
	}
}

func (lm *lockMgrImpl) Held() int {
	return lm.locks.Size()
}
