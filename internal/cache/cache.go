package cache

import (
	"sync"
	"time"
)

// Value holds the most recent value of T in memory.
type Value[T any] struct {
	mu        sync.RWMutex
	v         T
	set       bool
	updatedAt time.Time
}

func NewValue[T any]() *Value[T] {
	return &Value[T]{}
}

func (c *Value[T]) Set(v T) {
	c.mu.Lock()
	c.v = v
	c.set = true
	c.updatedAt = time.Now()
	c.mu.Unlock()
}

// Get returns the stored value and whether one was ever set.
func (c *Value[T]) Get() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v, c.set
}

// UpdatedAt returns the last time the value was set.
func (c *Value[T]) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// Lookup memoizes name-keyed rows. It must not outlive the transaction the
// rows were read or created in.
type Lookup[V any] struct {
	mu sync.RWMutex
	m  map[string]V
}

func NewLookup[V any]() *Lookup[V] {
	return &Lookup[V]{m: make(map[string]V)}
}

func (l *Lookup[V]) Get(name string) (V, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.m[name]
	return v, ok
}

func (l *Lookup[V]) Set(name string, v V) {
	l.mu.Lock()
	l.m[name] = v
	l.mu.Unlock()
}

func (l *Lookup[V]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.m)
}

// Resolve returns the cached row for name, or calls load and caches its
// result. Errors are not cached.
func (l *Lookup[V]) Resolve(name string, load func(string) (V, error)) (V, error) {
	if v, ok := l.Get(name); ok {
		return v, nil
	}
	v, err := load(name)
	if err != nil {
		return v, err
	}
	l.Set(name, v)
	return v, nil
}
