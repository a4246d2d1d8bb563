package resource

import "sync"

// Memo caches the result of a computation until invalidated. Failed
// computations are not cached.
type Memo[T any] struct {
	mu    sync.Mutex
	value T
	valid bool
}

// Get returns the cached value, computing it first when needed
func (m *Memo[T]) Get(compute func() (T, error)) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		return m.value, nil
	}
	value, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	m.value, m.valid = value, true
	return value, nil
}

// Peek returns the cached value without computing it
func (m *Memo[T]) Peek() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, m.valid
}

// Invalidate drops the cached value
func (m *Memo[T]) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	m.value, m.valid = zero, false
}
