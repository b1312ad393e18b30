package cache

// Cache is a settled-value store. In-flight coalescing is not its job; that
// lives in the dedup package.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
}
