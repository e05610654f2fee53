// Package lock provides a keyed mutex arena so ingestion of the same
// document is serialized while unrelated documents proceed in parallel.
package lock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyMutex hands out one mutex per key. Entries are reference-counted and
// removed once the last holder releases, so the arena does not grow with the
// number of documents ever seen.
type KeyMutex struct {
	mu      sync.Mutex
	entries map[uint]*entry
}

func NewKeyMutex() *KeyMutex {
	return &KeyMutex{entries: make(map[uint]*entry)}
}

// Lock blocks until the mutex for key is held.
func (k *KeyMutex) Lock(key uint) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for key. Unlocking a key that is not held panics,
// matching sync.Mutex semantics.
func (k *KeyMutex) Unlock(key uint) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		k.mu.Unlock()
		panic("lock: unlock of unheld key")
	}
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}
