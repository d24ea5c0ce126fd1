package syncx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockMap_LoadOrCreate(t *testing.T) {
	lm := &LockMap{}

	a := lm.LoadOrCreate("a")
	require.Same(t, a, lm.LoadOrCreate("a"))
	require.NotSame(t, a, lm.LoadOrCreate("b"))
	require.Equal(t, 2, lm.Len())

	lm.Lock("a")
	require.False(t, a.TryLock())
	lm.Unlock("a")
	require.True(t, a.TryLock())
	a.Unlock()
}
