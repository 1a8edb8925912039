package counter

import (
	"context"

	"github.com/patrickmn/go-cache"
)

var _ Counter = (*LocalCounter)(nil)

// LocalCounter keeps the counter in process memory. Increments are atomic
// within one process only, so it serves development and tests.
type LocalCounter struct {
	key             string
	cache           *cache.Cache
	requireExisting bool
}

func NewLocalCounter(opts ...Option) *LocalCounter {
	o := newOptions(opts)
	return &LocalCounter{
		key:             o.key,
		cache:           cache.New(cache.NoExpiration, 0),
		requireExisting: o.requireExisting,
	}
}

// Seed stores n as the current value, creating the record.
func (c *LocalCounter) Seed(n int64) {
	c.cache.Set(c.key, n, cache.NoExpiration)
}

func (c *LocalCounter) Up(ctx context.Context) (Count, error) {
	if c.requireExisting {
		if _, ok := c.cache.Get(c.key); !ok {
			return Count{}, &StorageError{Op: "cache.IncrementInt64", Key: c.key, Err: ErrNotFound}
		}
	} else {
		// Fails harmlessly when the item already exists.
		_ = c.cache.Add(c.key, int64(0), cache.NoExpiration)
	}
	n, err := c.cache.IncrementInt64(c.key, 1)
	if err != nil {
		return Count{}, &StorageError{Op: "cache.IncrementInt64", Key: c.key, Err: err}
	}
	return CountOf(n), nil
}

func (c *LocalCounter) Get(ctx context.Context) (Count, error) {
	v, ok := c.cache.Get(c.key)
	if !ok {
		return Count{}, &StorageError{Op: "cache.Get", Key: c.key, Err: ErrNotFound}
	}
	n, ok := v.(int64)
	if !ok {
		return Count{}, &StorageError{Op: "cache.Get", Key: c.key, Err: ErrMissingAttribute}
	}
	return CountOf(n), nil
}
