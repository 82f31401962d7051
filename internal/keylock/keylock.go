// Package keylock serialises work per key without holding one global lock.
package keylock

import "sync"

// Locker hands out one mutex per key. Entries are reference counted and
// dropped once nobody holds or waits on them.
type Locker[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty Locker
func New[K comparable]() *Locker[K] {
	return &Locker[K]{locks: make(map[K]*entry)}
}

// Lock blocks until the key is held and returns the function that releases it
func (l *Locker[K]) Lock(key K) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return l.release(key, e)
}

// TryLock takes the key only if nobody holds or waits on it
func (l *Locker[K]) TryLock(key K) (unlock func(), ok bool) {
	l.mu.Lock()
	if _, held := l.locks[key]; held {
		l.mu.Unlock()
		return nil, false
	}
	e := &entry{refs: 1}
	e.mu.Lock()
	l.locks[key] = e
	l.mu.Unlock()
	return l.release(key, e), true
}

func (l *Locker[K]) release(key K, e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// Len returns the number of keys currently held or awaited
func (l *Locker[K]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
