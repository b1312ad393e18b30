package reporting

import (
	"context"
	"maps"
	"time"
)

type metaContextKey struct{}

// Meta is the request-scoped context attached to error reports.
// Tags are indexed by Sentry and meant for low-cardinality values,
// extras are free-form.
type Meta struct {
	tags      map[string]string
	extras    map[string]string
	userID    string
	startedAt time.Time
}

// MetaFromContext returns a copy of the meta stored in ctx, or an empty
// meta if none is stored. The copy can be mutated freely.
func MetaFromContext(ctx context.Context) Meta {
	meta, ok := ctx.Value(metaContextKey{}).(Meta)
	if !ok {
		return Meta{
			tags:   make(map[string]string),
			extras: make(map[string]string),
		}
	}
	return Meta{
		tags:      maps.Clone(meta.tags),
		extras:    maps.Clone(meta.extras),
		userID:    meta.userID,
		startedAt: meta.startedAt,
	}
}

func storeMetaInContext(ctx context.Context, meta Meta) context.Context {
	return context.WithValue(ctx, metaContextKey{}, meta)
}

func setStartedAtInContext(ctx context.Context, startedAt time.Time) context.Context {
	meta := MetaFromContext(ctx)
	meta.startedAt = startedAt

	return storeMetaInContext(ctx, meta)
}

func AddTagsToContext(ctx context.Context, tags map[string]string) context.Context {
	meta := MetaFromContext(ctx)

	for key, value := range tags {
		meta.tags[key] = value
	}

	return storeMetaInContext(ctx, meta)
}

func AddExtrasToContext(ctx context.Context, extras map[string]string) context.Context {
	meta := MetaFromContext(ctx)

	for key, value := range extras {
		meta.extras[key] = value
	}

	return storeMetaInContext(ctx, meta)
}

func SetUserIDInContext(ctx context.Context, userID string) context.Context {
	meta := MetaFromContext(ctx)
	meta.userID = userID

	return storeMetaInContext(ctx, meta)
}
