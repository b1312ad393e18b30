package cache

import (
	"context"
	"fmt"

	"trackboard/internal/dedup"
	"trackboard/internal/logging"
)

// Returns data, fetched, error
func GetOrFetch[T any](ctx context.Context, cache Cache[T], deduper *dedup.Deduper[T], key string, fetch func() (T, error)) (T, bool, error) {
	if data, ok := cache.Get(key); ok {
		logging.FromContext(ctx).InfoContext(ctx, "Getting dashboard data", "cache", "hit")
		return data, false, nil
	}

	fetched := false
	data, err := deduper.Deduplicate(ctx, key, func() (T, error) {
		fetched = true
		logging.FromContext(ctx).InfoContext(ctx, "Getting dashboard data", "cache", "miss")

		data, err := fetch()
		if err != nil {
			var empty T
			return empty, fmt.Errorf("failed to fetch data for cache: %w", err)
		}

		cache.Set(key, data)
		return data, nil
	})
	if err != nil {
		var empty T
		return empty, false, err
	}

	return data, fetched, nil
}
