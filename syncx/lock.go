package syncx

import (
	"sync"
)

// LockMap hands out one mutex per key.
type LockMap struct {
	locks sync.Map
}

func (lm *LockMap) LoadOrCreate(key any) *sync.Mutex {
	v, ok := lm.locks.Load(key)
	if !ok {
		v, _ = lm.locks.LoadOrStore(key, &sync.Mutex{})
	}
	return v.(*sync.Mutex)
}

func (lm *LockMap) Lock(key any) {
	lm.LoadOrCreate(key).Lock()
}

func (lm *LockMap) Unlock(key any) {
	v, ok := lm.locks.Load(key)
	if !ok {
		panic("syncx: unlock of a key that was never locked")
	}
	v.(*sync.Mutex).Unlock()
}

func (lm *LockMap) Len() int {
	l := 0
	lm.locks.Range(func(_, _ any) bool {
		l++
		return true
	})
	return l
}
