package syncx

import (
	"errors"
	"sync"
)

// ErrDeadlock is returned by BuildLock.Lock when waiting would make the caller wait
// on itself.
var ErrDeadlock = errors.New("syncx: lock owner waits on the caller")

var (
	buildMu   sync.Mutex
	buildDone = sync.NewCond(&buildMu)
)

// Owner identifies one caller across nested BuildLock acquisitions. The zero value
// is ready to use.
type Owner struct {
	waitingOn *BuildLock
}

// BuildLock is a mutex held by an Owner. Lock waits like a mutex unless the current
// owner is waiting, directly or through other owners, on a lock held by the caller.
type BuildLock struct {
	owner *Owner
}

func (l *BuildLock) Lock(o *Owner) error {
	buildMu.Lock()
	defer buildMu.Unlock()

	for l.owner != nil {
		for holder := l.owner; holder != nil; {
			if holder == o {
				return ErrDeadlock
			}
			if holder.waitingOn == nil {
				break
			}
			holder = holder.waitingOn.owner
		}

		o.waitingOn = l
		buildDone.Wait()
		o.waitingOn = nil
	}

	l.owner = o
	return nil
}

func (l *BuildLock) Unlock() {
	buildMu.Lock()
	l.owner = nil
	buildMu.Unlock()
	buildDone.Broadcast()
}
