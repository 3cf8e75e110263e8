package service

import "sync"

// keyedMutex serializes batch jobs per sendout id. TryLock either takes
// the lock or reports it held; there is no blocking acquire, because a
// second concurrent job for the same sendout must no-op rather than
// wait.
type keyedMutex struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{held: make(map[int64]struct{})}
}

func (k *keyedMutex) TryLock(id int64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.held[id]; ok {
		return false
	}
	k.held[id] = struct{}{}
	return true
}

func (k *keyedMutex) Unlock(id int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.held, id)
}
