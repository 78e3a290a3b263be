// Package locking provides per-key in-process mutual exclusion. The
// scheduler locks per staff id and the status machine per patient id, so a
// conflict scan and the write that follows it execute as one critical
// section against concurrent callers for the same key.
package locking

import "sync"

// Keyed is a set of named mutexes. The zero value is not usable; call New.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New() *Keyed {
	return &Keyed{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use, and returns
// the matching unlock function. Mutexes are retained for the process
// lifetime; the key space is bounded by the staff/patient population.
func (k *Keyed) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
