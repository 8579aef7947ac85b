package generic

import "sync"

// SyncMap wraps sync.Map with typed keys and values, so callers never deal
// with interface assertions. Used for the in-flight request registry, where
// concurrent stores, removals and iteration interleave freely.
type SyncMap[K comparable, V any] struct {
	m sync.Map
}

// Store sets the value for a key.
func (m *SyncMap[K, V]) Store(key K, value V) {
	m.m.Store(key, value)
}

// LoadAndDelete removes the key and returns the value that was stored under
// it, if any. The loaded result reports whether the key was present.
func (m *SyncMap[K, V]) LoadAndDelete(key K) (value V, loaded bool) {
	if v, loaded := m.m.LoadAndDelete(key); loaded {
		return v.(V), true
	}

	var zero V

	return zero, false
}

// Range calls f sequentially for each key and value present in the map. If f
// returns false, range stops the iteration.
func (m *SyncMap[K, V]) Range(f func(key K, value V) bool) {
	m.m.Range(func(key, value interface{}) bool {
		return f(key.(K), value.(V))
	})
}
