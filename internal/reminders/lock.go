package reminders

import "sync"

// idLocks hands out one mutex per reminder id. Entries are dropped once no
// goroutine holds or waits on them.
type idLocks struct {
	mu    sync.Mutex
	locks map[int64]*idLock
}

type idLock struct {
	sync.Mutex
	refs int
}

func newIDLocks() *idLocks {
	return &idLocks{locks: make(map[int64]*idLock)}
}

// lock blocks until id is free and returns the matching unlock function.
func (l *idLocks) lock(id int64) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &idLock{}
		l.locks[id] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
