package cache

import "sync"

// basicCache is a plain map-backed Cache with no expiry. Used in tests and
// development where entries living forever is fine.
type basicCache[T any] struct {
	mu    sync.Mutex
	cache map[string]T
}

func (c *basicCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.cache[key]
	return data, ok
}

func (c *basicCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[key] = data
}

func (c *basicCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.cache, key)
}

func NewBasicCache[T any]() Cache[T] {
	return &basicCache[T]{
		cache: make(map[string]T),
	}
}
