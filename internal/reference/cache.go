package reference

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cache keeps loaded reference Data for the life of the process so that
// repeated trainer cycles do not re-read the CSV tables.
type Cache struct {
	c *cache.Cache
}

// NewCache returns a cache whose entries expire after ttl. A zero ttl keeps
// entries until the process exits.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		return &Cache{c: cache.New(cache.NoExpiration, 0)}
	}
	return &Cache{c: cache.New(ttl, 2*ttl)}
}

// Key builds the cache key for a reference source.
func Key(source string, opts Options) string {
	return fmt.Sprintf("reference:%s:%s:%d", source, opts.County, opts.Year)
}

// Get returns the Data cached under key, calling load on a miss.
func (c *Cache) Get(ctx context.Context, key string, load func(context.Context) (*Data, error)) (*Data, error) {
	if v, ok := c.c.Get(key); ok {
		return v.(*Data), nil
	}
	d, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.c.Set(key, d, cache.DefaultExpiration)
	return d, nil
}

func (c *Cache) Flush() {
	c.c.Flush()
}
