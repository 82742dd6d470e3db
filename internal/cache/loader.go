package cache

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// LoadFunc produces the value for key on a cache miss.
type LoadFunc[T any] func(ctx context.Context, key string) (T, error)

// Loader fronts a Cache with a load function. Concurrent misses for the same
// key share one call to load. Failed loads are not cached.
type Loader[T any] struct {
	cache Cache[T]
	load  LoadFunc[T]
	group singleflight.Group
}

func NewLoader[T any](c Cache[T], load LoadFunc[T]) *Loader[T] {
	return &Loader[T]{cache: c, load: load}
}

// Get returns the cached value for key or loads it.
func (l *Loader[T]) Get(ctx context.Context, key string) (T, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		if v, ok := l.cache.Get(key); ok {
			return v, nil
		}
		v, err := l.load(ctx, key)
		if err != nil {
			return nil, err
		}
		l.cache.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache loader: unexpected value type %T", v)
	}
	return out, nil
}

// Refresh always calls load, stores the result and returns it. It never
// joins an in-flight Get, so the value cannot predate the call.
func (l *Loader[T]) Refresh(ctx context.Context, key string) (T, error) {
	v, err, _ := l.group.Do("refresh\x00"+key, func() (any, error) {
		v, err := l.load(ctx, key)
		if err != nil {
			return nil, err
		}
		l.cache.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache loader: unexpected value type %T", v)
	}
	return out, nil
}
