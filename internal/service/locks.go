package service

import "sync"

// keyedMutex serialises mutate-then-write cycles per aggregate key
// (class+date for sessions, exam+student for assessments). Lock entries
// are never evicted; key cardinality is bounded by the aggregates touched
// during the process lifetime.
type keyedMutex struct {
	locks sync.Map
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	v, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
