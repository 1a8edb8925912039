package counter

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	s := miniredis.RunT(t)
	cl := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{s.Addr()}})
	t.Cleanup(func() { cl.Close() })
	return s, cl
}

func TestRedisCounter_Up(t *testing.T) {
	ctx := context.Background()
	s, cl := newTestRedis(t)
	require.NoError(t, s.Set("visitors", "41"))

	c := NewRedisCounter(cl)
	got, err := c.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, "42", got.String())

	got, err = c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "42", got.String())
}

func TestRedisCounter_UpsertOnFirstCall(t *testing.T) {
	ctx := context.Background()
	_, cl := newTestRedis(t)

	c := NewRedisCounter(cl, WithKey("fresh"))
	_, err := c.Get(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	got, err := c.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", got.String())
}

func TestRedisCounter_RequireExisting(t *testing.T) {
	ctx := context.Background()
	s, cl := newTestRedis(t)

	c := NewRedisCounter(cl, WithRequireExisting(true))
	_, err := c.Up(ctx)
	require.ErrorIs(t, err, ErrNotFound)
	assert.False(t, s.Exists("visitors"))

	require.NoError(t, s.Set("visitors", "7"))
	got, err := c.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, "8", got.String())
}

func TestRedisCounter_Unreachable(t *testing.T) {
	ctx := context.Background()
	s, err := miniredis.Run()
	require.NoError(t, err)
	cl := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{s.Addr()}, MaxRetries: -1})
	defer cl.Close()
	s.Close()

	_, err = NewRedisCounter(cl).Up(ctx)
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "redis.IncrBy", se.Op)
}

func TestRedisCounter_Concurrent(t *testing.T) {
	const m = 50
	ctx := context.Background()
	s, cl := newTestRedis(t)
	c := NewRedisCounter(cl)

	seen := make([]bool, m+1)
	results := make(chan int64, m)
	var eg errgroup.Group
	for i := 0; i < m; i++ {
		eg.Go(func() error {
			v, err := c.Up(ctx)
			if err != nil {
				return err
			}
			n, _ := v.Int64()
			results <- n
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	close(results)

	for n := range results {
		require.True(t, n >= 1 && n <= m, "out of range: %d", n)
		require.False(t, seen[n], "duplicate: %d", n)
		seen[n] = true
	}
	v, err := s.Get("visitors")
	require.NoError(t, err)
	assert.Equal(t, "50", v)
}
