// Package session serializes state changes per session id.
package session

import "sync"

// Locks hands out one mutex per session. Entries are dropped once no caller holds or
// waits for them, so idle sessions cost nothing. The zero value is not usable; call NewLocks.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*entry)}
}

// Lock blocks until the session is free and returns the matching unlock.
func (l *Locks) Lock(sessionID string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[sessionID]
	if !ok {
		e = &entry{}
		l.locks[sessionID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, sessionID)
		}
		l.mu.Unlock()
	}
}

func (l *Locks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
