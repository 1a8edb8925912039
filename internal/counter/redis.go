package counter

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

var _ Counter = (*RedisCounter)(nil)

// incrExisting increments KEYS[1] only when it already exists.
var incrExisting = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return redis.call("INCRBY", KEYS[1], ARGV[1])
end
return false
`)

type RedisCounter struct {
	key             string
	client          redis.UniversalClient
	requireExisting bool
}

func NewRedisCounter(client redis.UniversalClient, opts ...Option) *RedisCounter {
	o := newOptions(opts)
	return &RedisCounter{
		key:             o.key,
		client:          client,
		requireExisting: o.requireExisting,
	}
}

func (c *RedisCounter) Get(ctx context.Context) (Count, error) {
	s, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return Count{}, &StorageError{Op: "redis.Get", Key: c.key, Err: ErrNotFound}
	}
	if err != nil {
		return Count{}, &StorageError{Op: "redis.Get", Key: c.key, Err: err}
	}
	return ParseCount(s)
}

func (c *RedisCounter) Up(ctx context.Context) (Count, error) {
	if c.requireExisting {
		n, err := incrExisting.Run(ctx, c.client, []string{c.key}, 1).Int64()
		if errors.Is(err, redis.Nil) {
			return Count{}, &StorageError{Op: "redis.EvalSha", Key: c.key, Err: ErrNotFound}
		}
		if err != nil {
			return Count{}, &StorageError{Op: "redis.EvalSha", Key: c.key, Err: err}
		}
		return CountOf(n), nil
	}

	n, err := c.client.IncrBy(ctx, c.key, 1).Result()
	if err != nil {
		return Count{}, &StorageError{Op: "redis.IncrBy", Key: c.key, Err: err}
	}
	return CountOf(n), nil
}
