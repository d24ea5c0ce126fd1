package syncx

import (
	"sync"
)

// Map is a typed wrapper over sync.Map.
type Map[TK any, TV any] struct {
	data sync.Map
}

func (m *Map[TK, TV]) Store(key TK, value TV) {
	m.data.Store(key, value)
}

func (m *Map[TK, TV]) Delete(key TK) {
	m.data.Delete(key)
}

func (m *Map[TK, TV]) Load(key TK) (TV, bool) {
	v, ok := m.data.Load(key)
	if !ok {
		var zero TV
		return zero, false
	}
	return v.(TV), true
}

func (m *Map[TK, TV]) LoadOrStore(key TK, value TV) (TV, bool) {
	v, loaded := m.data.LoadOrStore(key, value)
	return v.(TV), loaded
}

func (m *Map[TK, TV]) LoadOrCreate(key TK, valueFactory func(TK) TV) (TV, bool) {
	if v, loaded := m.data.Load(key); loaded {
		return v.(TV), true
	}

	v, loaded := m.data.LoadOrStore(key, valueFactory(key))
	return v.(TV), loaded
}

// Range calls f for each entry until f returns false.
func (m *Map[TK, TV]) Range(f func(TK, TV) bool) {
	m.data.Range(func(k, v any) bool {
		return f(k.(TK), v.(TV))
	})
}

func NewMap[TK any, TV any]() *Map[TK, TV] {
	return &Map[TK, TV]{}
}
