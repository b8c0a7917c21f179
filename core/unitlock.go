package core

import "sync"

// unitLocks hands out one mutex per unit ID so goroutines of this process
// queue here instead of on the store's unit lock, which is what orders
// writers across processes. Entries are reference counted and dropped when
// the last holder releases them.
type unitLocks struct {
	mu    sync.Mutex
	locks map[string]*unitLock
}

type unitLock struct {
	sync.Mutex
	refs int
}

func newUnitLocks() *unitLocks {
	return &unitLocks{locks: make(map[string]*unitLock)}
}

// lock blocks until the unit is free and returns the matching unlock func.
func (l *unitLocks) lock(unitID string) func() {
	l.mu.Lock()
	ul, ok := l.locks[unitID]
	if !ok {
		ul = &unitLock{}
		l.locks[unitID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.Lock()
	return func() {
		ul.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, unitID)
		}
		l.mu.Unlock()
	}
}

// size returns how many units currently have holders or waiters.
func (l *unitLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
