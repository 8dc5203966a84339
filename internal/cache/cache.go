package cache

import (
	"context"
	"time"
)

// Cache is an explicit cache handle passed to the components that need
// one. Callers own invalidation; nothing in this package is process
// global.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Noop struct{}

func (Noop) Get(_ context.Context, _ string) (string, bool, error) { return "", false, nil }

func (Noop) Set(_ context.Context, _ string, _ string, _ time.Duration) error { return nil }

func (Noop) Del(_ context.Context, _ ...string) error { return nil }
