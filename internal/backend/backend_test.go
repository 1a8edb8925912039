package backend

import (
	"context"
	"flag"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tckz/visitor-counter/internal/counter"
)

func parse(t *testing.T, args ...string) Config {
	t.Helper()
	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return c
}

func TestRegisterFlags_Defaults(t *testing.T) {
	for _, k := range []string{"COUNTER_BACKEND", "COUNTER_KEY", "COUNTER_FIELD", "COUNTER_REQUIRE_EXISTING", "TABLE_NAME", "TABLE_KEY_ATTR", "COUNTER_INITIAL"} {
		t.Setenv(k, "")
	}

	c := parse(t)
	assert.Equal(t, DynamoDB, c.Backend)
	assert.Equal(t, "visitors", c.Key)
	assert.Equal(t, "visitors", c.Field)
	assert.Equal(t, "VisitorCount", c.Table)
	assert.Equal(t, "id", c.KeyAttr)
	assert.Equal(t, "Counter", c.Kind)
	assert.False(t, c.RequireExisting)
	assert.Equal(t, int64(0), c.Initial)
}

func TestRegisterFlags_EnvAndFlags(t *testing.T) {
	t.Setenv("COUNTER_BACKEND", "redis")
	t.Setenv("TABLE_NAME", "Other")
	t.Setenv("COUNTER_REQUIRE_EXISTING", "true")
	t.Setenv("COUNTER_INITIAL", "41")

	c := parse(t, "--backend", "local", "--key", "home")
	assert.Equal(t, Local, c.Backend)
	assert.Equal(t, "home", c.Key)
	assert.Equal(t, "Other", c.Table)
	assert.True(t, c.RequireExisting)
	assert.Equal(t, int64(41), c.Initial)
}

func TestOpen_Local(t *testing.T) {
	ctx := context.Background()
	cnt, closeFn, err := Open(ctx, Config{Backend: Local, Key: "visitors", Initial: 41})
	require.NoError(t, err)
	defer closeFn()

	got, err := cnt.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, "42", got.String())
}

func TestOpen_LocalRequireExisting(t *testing.T) {
	ctx := context.Background()
	cnt, _, err := Open(ctx, Config{Backend: Local, Key: "visitors", RequireExisting: true})
	require.NoError(t, err)

	_, err = cnt.Up(ctx)
	assert.ErrorIs(t, err, counter.ErrNotFound)
}

func TestOpen_Redis(t *testing.T) {
	ctx := context.Background()
	s := miniredis.RunT(t)

	cnt, closeFn, err := Open(ctx, Config{Backend: Redis, Key: "visitors", RedisAddr: s.Addr()})
	require.NoError(t, err)
	defer closeFn()

	got, err := cnt.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", got.String())
}

func TestOpen_RedisWithoutAddr(t *testing.T) {
	_, _, err := Open(context.Background(), Config{Backend: Redis})
	assert.Error(t, err)
}

func TestOpen_DynamoDB(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", "/dev/null")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/dev/null")
	t.Setenv("AWS_PROFILE", "")

	cnt, _, err := Open(context.Background(), Config{
		Backend:          DynamoDB,
		Region:           "us-east-1",
		DynamoDBEndpoint: "http://localhost:8000",
	})
	require.NoError(t, err)
	assert.IsType(t, &counter.DynamoDBCounter{}, cnt)
}

func TestOpen_Unknown(t *testing.T) {
	_, _, err := Open(context.Background(), Config{Backend: "mongo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongo")
}

func TestGetenv(t *testing.T) {
	t.Setenv("VISITOR_COUNTER_TEST_SET", "x")
	t.Setenv("VISITOR_COUNTER_TEST_EMPTY", "")

	assert.Equal(t, "x", Getenv("VISITOR_COUNTER_TEST_SET", "def"))
	assert.Equal(t, "def", Getenv("VISITOR_COUNTER_TEST_EMPTY", "def"))
	assert.Equal(t, "def", Getenv("VISITOR_COUNTER_TEST_UNSET_5f1c", "def"))
}
