package cache

import (
	"golang.org/x/sync/singleflight"
)

// Observer receives cache hit and miss notifications.
type Observer interface {
	CacheHit(name string)
	CacheMiss(name string)
}

// Memo memoizes computations in a Cache. Concurrent calls for the same key
// share a single computation. A hit returns exactly what a miss stored.
type Memo[T any] struct {
	name     string
	cache    Cache[T]
	group    singleflight.Group
	observer Observer
}

// NewMemo wraps cache; observer may be nil.
func NewMemo[T any](name string, cache Cache[T], observer Observer) *Memo[T] {
	return &Memo[T]{name: name, cache: cache, observer: observer}
}

// Do returns the cached value for key or computes and stores it.
// Errors are never cached.
func (m *Memo[T]) Do(key string, fn func() (T, error)) (T, error) {
	if v, ok := m.cache.Get(key); ok {
		if m.observer != nil {
			m.observer.CacheHit(m.name)
		}
		return v, nil
	}
	if m.observer != nil {
		m.observer.CacheMiss(m.name)
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		if v, ok := m.cache.Get(key); ok {
			return v, nil
		}
		v, err := fn()
		if err != nil {
			return v, err
		}
		m.cache.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops every entry whose key starts with prefix.
func (m *Memo[T]) Invalidate(prefix string) int {
	return m.cache.DeletePrefix(prefix)
}
