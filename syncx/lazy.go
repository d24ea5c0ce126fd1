package syncx

import (
	"sync/atomic"
)

// Lazy holds a value that is built by the first successful Get and never changes afterwards.
// A failed build leaves the Lazy empty, so a later Get builds again.
type Lazy[T any] struct {
	lock  BuildLock
	value atomic.Pointer[T]
}

func (l *Lazy[T]) Load() (T, bool) {
	if v := l.value.Load(); v != nil {
		return *v, true
	}
	var zero T
	return zero, false
}

func (l *Lazy[T]) Get(build func() (T, error)) (T, error) {
	return l.GetAs(&Owner{}, build)
}

// GetAs is Get on behalf of o. Builds nested inside build should pass the same o;
// it returns ErrDeadlock instead of waiting on a build that waits on o.
func (l *Lazy[T]) GetAs(o *Owner, build func() (T, error)) (T, error) {
	if v := l.value.Load(); v != nil {
		return *v, nil
	}

	var zero T
	if err := l.lock.Lock(o); err != nil {
		return zero, err
	}
	defer l.lock.Unlock()

	if v := l.value.Load(); v != nil {
		return *v, nil
	}

	v, err := build()
	if err != nil {
		return zero, err
	}

	l.value.Store(&v)
	return v, nil
}
