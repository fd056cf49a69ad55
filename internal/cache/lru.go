package cache

import (
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry[T any] struct {
	data      T
	expiresAt time.Time
}

// LRUCache bounds entries by count and age. Expired entries are dropped
// on read or by CleanExpired.
type LRUCache[T any] struct {
	items *lru.Cache[string, entry[T]]
	ttl   time.Duration
	now   func() time.Time
}

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	// lru.New fails only for a non-positive size.
	items, _ := lru.New[string, entry[T]](maxSize)
	return &LRUCache[T]{items: items, ttl: ttl, now: time.Now}
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	var zero T
	e, ok := c.items.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		c.items.Remove(key)
		return zero, false
	}
	return e.data, true
}

func (c *LRUCache[T]) Set(key string, data T) {
	c.items.Add(key, entry[T]{data: data, expiresAt: c.now().Add(c.ttl)})
}

func (c *LRUCache[T]) Delete(key string) {
	c.items.Remove(key)
}

// CleanExpired removes expired entries and returns how many it removed.
func (c *LRUCache[T]) CleanExpired() int {
	now := c.now()
	removed := 0
	for _, key := range c.items.Keys() {
		if e, ok := c.items.Peek(key); ok && now.After(e.expiresAt) {
			if c.items.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

// DeletePrefix removes every key starting with prefix.
func (c *LRUCache[T]) DeletePrefix(prefix string) int {
	removed := 0
	for _, key := range c.items.Keys() {
		if strings.HasPrefix(key, prefix) && c.items.Remove(key) {
			removed++
		}
	}
	return removed
}

func (c *LRUCache[T]) Size() int {
	return c.items.Len()
}
