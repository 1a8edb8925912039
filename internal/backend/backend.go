// Package backend selects and opens the counter storage from flags and
// environment.
package backend

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
	"github.com/tckz/visitor-counter/internal/counter"
)

const (
	DynamoDB  = "dynamodb"
	Datastore = "datastore"
	Redis     = "redis"
	Local     = "local"
)

type Config struct {
	Backend         string
	Key             string
	Field           string
	RequireExisting bool

	Table            string
	KeyAttr          string
	DynamoDBEndpoint string
	Region           string

	ProjectID string
	Kind      string
	Namespace string

	RedisAddr string

	Initial int64
}

// RegisterFlags binds c to fs. Defaults come from the environment, so load
// .env before calling it.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Backend, "backend", Getenv("COUNTER_BACKEND", DynamoDB), "dynamodb|datastore|redis|local")
	fs.StringVar(&c.Key, "key", Getenv("COUNTER_KEY", counter.DefaultKey), "key of the counter record")
	fs.StringVar(&c.Field, "field", Getenv("COUNTER_FIELD", counter.DefaultField), "numeric attribute holding the count")
	fs.BoolVar(&c.RequireExisting, "require-existing", getenvBool("COUNTER_REQUIRE_EXISTING", false), "fail instead of creating a missing record")
	fs.StringVar(&c.Table, "table", Getenv("TABLE_NAME", counter.DefaultTable), "dynamodb table")
	fs.StringVar(&c.KeyAttr, "key-attr", Getenv("TABLE_KEY_ATTR", counter.DefaultKeyAttr), "dynamodb partition key attribute")
	fs.StringVar(&c.DynamoDBEndpoint, "dynamodb-endpoint", os.Getenv("DYNAMODB_ENDPOINT"), "endpoint URL, e.g. DynamoDB Local")
	fs.StringVar(&c.Region, "region", os.Getenv("AWS_REGION"), "aws region")
	fs.StringVar(&c.ProjectID, "project", os.Getenv("PROJECT_ID"), "gcp project of datastore")
	fs.StringVar(&c.Kind, "kind", Getenv("DATASTORE_KIND", counter.DefaultKind), "datastore kind")
	fs.StringVar(&c.Namespace, "ns", os.Getenv("DATASTORE_NAMESPACE"), "datastore namespace")
	fs.StringVar(&c.RedisAddr, "redis", os.Getenv("REDIS_ADDR"), "addr:port of redis")
	fs.Int64Var(&c.Initial, "initial", getenvInt64("COUNTER_INITIAL", 0), "initial value of the local backend")
}

func (c *Config) options() []counter.Option {
	return []counter.Option{
		counter.WithKey(c.Key),
		counter.WithField(c.Field),
		counter.WithRequireExisting(c.RequireExisting),
		counter.WithTable(c.Table),
		counter.WithKeyAttr(c.KeyAttr),
		counter.WithKind(c.Kind),
		counter.WithNamespace(c.Namespace),
	}
}

// Open returns the configured counter and a function releasing its client.
func Open(ctx context.Context, c Config) (counter.Counter, func() error, error) {
	nop := func() error { return nil }

	switch c.Backend {
	case DynamoDB:
		cl, err := newDynamoDBClient(ctx, c)
		if err != nil {
			return nil, nil, err
		}
		return counter.NewDynamoDBCounter(cl, c.options()...), nop, nil

	case Datastore:
		cl, err := datastore.NewClient(ctx, c.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("datastore.NewClient: %w", err)
		}
		return counter.NewDatastoreCounter(cl, c.options()...), cl.Close, nil

	case Redis:
		if c.RedisAddr == "" {
			return nil, nil, fmt.Errorf("redis address must be specified")
		}
		cl := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:        []string{c.RedisAddr},
			DialTimeout:  time.Second * 2,
			ReadTimeout:  time.Second * 2,
			WriteTimeout: time.Second * 2,
			PoolTimeout:  time.Second * 5,
		})
		return counter.NewRedisCounter(cl, c.options()...), cl.Close, nil

	case Local:
		lc := counter.NewLocalCounter(c.options()...)
		if !c.RequireExisting || c.Initial != 0 {
			lc.Seed(c.Initial)
		}
		return lc, nop, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend: %s", c.Backend)
	}
}

func newDynamoDBClient(ctx context.Context, c Config) (*dynamodb.Client, error) {
	configFunctions := []func(*config.LoadOptions) error{}

	if c.Region != "" {
		configFunctions = append(configFunctions, config.WithRegion(c.Region))
	}

	// DynamoDB Local accepts any credentials but still requires some.
	if c.DynamoDBEndpoint != "" {
		configFunctions = append(configFunctions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configFunctions...)
	if err != nil {
		return nil, fmt.Errorf("config.LoadDefaultConfig: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if c.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(c.DynamoDBEndpoint)
		}
	}), nil
}

// Getenv returns the value of key, or def when it is unset or empty.
func Getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return b
}

func getenvInt64(key string, def int64) int64 {
	n, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return def
	}
	return n
}
