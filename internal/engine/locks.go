package engine

import "sync"

// noteLocks serializes mutations per note id. Request handlers and the
// sweeper share the same lock for a given note, which is what makes the
// re-check of expiry before archiving race-free.
//
// Mutexes are never evicted; the map grows with the number of distinct
// notes touched by one process, which is bounded and small.
type noteLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

// lock acquires the mutex for a note id and returns its unlock func.
func (l *noteLocks) lock(id string) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*sync.Mutex)
	}
	nm, ok := l.m[id]
	if !ok {
		nm = &sync.Mutex{}
		l.m[id] = nm
	}
	l.mu.Unlock()

	nm.Lock()
	return nm.Unlock
}
