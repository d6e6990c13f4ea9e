// Package keylock serializes writers per key while letting different keys
// proceed independently.
package keylock

import "sync"

// Locker hands out one mutex per key
type Locker struct {
	locks sync.Map
}

// Lock blocks until key is free and returns the matching unlock function
func (l *Locker) Lock(key string) func() {
	v, _ := l.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
