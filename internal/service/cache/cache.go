package cache

import (
	"context"
	"time"
)

// BytesCache stores serialized forecasts under string keys with a TTL.
// A miss is (nil, false, nil); errors are reserved for backend failures.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
