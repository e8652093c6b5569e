package world

import "sync"

// World is a scenario-scoped property store.
//
// Thread Safety: all methods are safe for concurrent use, so steps running
// callbacks on client goroutines may write directly.
type World struct {
	mu    sync.RWMutex
	props map[string]any
}

// New creates an empty World.
func New() *World {
	return &World{props: make(map[string]any)}
}

// Set stores value under key, replacing any existing value.
func (w *World) Set(key string, value any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.props[key] = value
}

// Get returns the value stored under key.
func (w *World) Get(key string) (any, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.props[key]
	return v, ok
}

// GetString returns the string stored under key, or "" when absent or not a
// string.
func (w *World) GetString(key string) string {
	v, _ := w.Get(key)
	s, _ := v.(string)
	return s
}

// GetBytes returns the byte slice stored under key, or nil.
func (w *World) GetBytes(key string) []byte {
	v, _ := w.Get(key)
	b, _ := v.([]byte)
	return b
}

// Delete removes key. Missing keys are not an error.
func (w *World) Delete(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.props, key)
}

// Keys returns the currently stored keys.
func (w *World) Keys() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	keys := make([]string, 0, len(w.props))
	for k := range w.props {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of stored properties.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.props)
}

// Reset discards all properties.
func (w *World) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.props = make(map[string]any)
}
