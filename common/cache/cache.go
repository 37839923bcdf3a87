package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("key not found in cache")
	ErrInvalidValue = errors.New("invalid value for cache")
	ErrClosed       = errors.New("cache is closed")
	ErrInvalidKey   = errors.New("invalid cache key")
)

// Cache stores values that implement encoding.BinaryMarshaler and reads them
// back into an encoding.BinaryUnmarshaler (or a *string).
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Get(ctx context.Context, key string, value interface{}) error

	Delete(ctx context.Context, key string) error

	Clear(ctx context.Context) error

	Close() error
}

type Options struct {
	DefaultTTL time.Duration

	CleanupInterval time.Duration

	// KeyPrefix namespaces every key, e.g. "jobharvest:".
	KeyPrefix string

	RedisURL string

	RedisPassword string

	RedisDB int
}

func DefaultOptions() Options {
	return Options{
		DefaultTTL:      time.Hour,
		CleanupInterval: time.Minute * 5,
	}
}

// TTL resolves the expiry for a Set call: the explicit ttl, else the
// configured default, else DefaultOptions().DefaultTTL.
func (o Options) TTL(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	if o.DefaultTTL > 0 {
		return o.DefaultTTL
	}
	return DefaultOptions().DefaultTTL
}
