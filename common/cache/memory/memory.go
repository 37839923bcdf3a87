// Package memory is an in-process cache.Cache used when no Redis address is
// configured. Expiry and eviction are handled by go-cache.
package memory

import (
	"context"
	"encoding"
	"sync/atomic"
	"time"

	"jobharvest/common/cache"

	gocache "github.com/patrickmn/go-cache"
)

type Cache struct {
	opts   cache.Options
	store  *gocache.Cache
	closed atomic.Bool
}

// New builds a Cache. A positive opts.CleanupInterval starts go-cache's
// janitor; expired entries are never returned either way.
func New(opts cache.Options) *Cache {
	return &Cache{
		opts:  opts,
		store: gocache.New(opts.TTL(0), opts.CleanupInterval),
	}
}

func (c *Cache) key(key string) string {
	return c.opts.KeyPrefix + key
}

func (c *Cache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if key == "" {
		return cache.ErrInvalidKey
	}
	if c.closed.Load() {
		return cache.ErrClosed
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = append([]byte(nil), v...)
	case encoding.BinaryMarshaler:
		b, err := v.MarshalBinary()
		if err != nil {
			return err
		}
		data = b
	default:
		return cache.ErrInvalidValue
	}

	c.store.Set(c.key(key), data, c.opts.TTL(ttl))
	return nil
}

func (c *Cache) Get(_ context.Context, key string, value interface{}) error {
	if key == "" {
		return cache.ErrInvalidKey
	}
	if c.closed.Load() {
		return cache.ErrClosed
	}

	raw, ok := c.store.Get(c.key(key))
	if !ok {
		return cache.ErrNotFound
	}
	data, ok := raw.([]byte)
	if !ok {
		return cache.ErrInvalidValue
	}

	switch v := value.(type) {
	case *string:
		*v = string(data)
	case encoding.BinaryUnmarshaler:
		return v.UnmarshalBinary(data)
	default:
		return cache.ErrInvalidValue
	}
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.store.Delete(c.key(key))
	return nil
}

func (c *Cache) Clear(_ context.Context) error {
	c.store.Flush()
	return nil
}

// Close drops every entry and rejects further reads and writes.
func (c *Cache) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.store.Flush()
	}
	return nil
}

var _ cache.Cache = (*Cache)(nil)
