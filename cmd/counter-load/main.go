package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	vh "github.com/tckz/vegetahelper"
	"github.com/tckz/visitor-counter/internal/backend"
	"github.com/tckz/visitor-counter/internal/counter"
	"github.com/tckz/visitor-counter/internal/loadcheck"
	"github.com/tckz/visitor-counter/internal/log"
	"github.com/tckz/visitor-counter/internal/visitor"
	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.uber.org/zap"
	"google.golang.org/api/idtoken"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optRate = &vh.RateFlag{
		Rate: &vegeta.Rate{
			Freq: 30,
			Per:  1 * time.Second,
		}}
	optDuration = flag.Duration("duration", 10*time.Second, "Duration of the test [0 = forever]")
	optOutput   = flag.String("output", "", "/path/to/results.bin or 'stdout'")
	optWorkers  = flag.Uint64("workers", vegeta.DefaultWorkers, "Number of workers")
	optLogLevel = flag.String("log-level", "info", "info|warn|error")
	optURL      = flag.String("url", "", "URL of a deployed counter; the configured backend is used in-process if empty")
	optAudience = flag.String("audience", "", "aud of the ID token sent to --url")
	optBackend  backend.Config
)

func init() {
	godotenv.Load()

	flag.Var(optRate, "rate", "Number of requests per time unit")
	optBackend.RegisterFlags(flag.CommandLine)
	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
}

type nopWriteCloser struct {
	io.Writer
}

func (c nopWriteCloser) Close() error {
	return nil
}

func openResultFile(out string) (io.WriteCloser, error) {
	switch out {
	case "stdout":
		return &nopWriteCloser{os.Stdout}, nil
	case "":
		return &nopWriteCloser{io.Discard}, nil
	default:
		return os.Create(out)
	}
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	invoke, baseline, closeFn, err := newInvoker(ctx)
	if err != nil {
		logger.Fatalf("*** newInvoker: %v", err)
	}
	defer closeFn()

	var mu sync.Mutex
	var counts []int64
	atk := vh.NewAttacker(func(ctx context.Context) (result *vh.HitResult, retErr error) {
		c, err := invoke(ctx)
		if err != nil {
			return nil, err
		}
		n, ok := c.Int64()
		if !ok {
			return nil, fmt.Errorf("count is not an int64: %s", c)
		}
		mu.Lock()
		counts = append(counts, n)
		mu.Unlock()
		return result, nil
	}, vh.WithWorkers(*optWorkers))
	res := atk.Attack(ctx, *optRate.Rate, *optDuration, "visitor-counter")

	out, err := openResultFile(*optOutput)
	if err != nil {
		logger.Fatal(err)
	}
	defer out.Close()
	enc := vegeta.NewEncoder(out)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT)

	var metrics vegeta.Metrics
loop:
	for {
		select {
		case s := <-sig:
			logger.Infof("Received signal: %s", s)
			cancel()
			// keep loop until 'res' is closed.
		case r, ok := <-res:
			if !ok {
				break loop
			}
			metrics.Add(r)
			if err := enc.Encode(r); err != nil {
				logger.Errorf("*** Encode: %v", err)
				break loop
			}
		}
	}
	metrics.Close()

	logger.Infof("requests=%s, success=%.2f%%, p50=%s, p99=%s, errors=%v",
		humanize.Comma(int64(metrics.Requests)), metrics.Success*100,
		metrics.Latencies.P50, metrics.Latencies.P99, metrics.Errors)

	mu.Lock()
	defer mu.Unlock()
	rep := loadcheck.Analyze(baseline, counts)
	logger.With(zap.Any("report", rep)).Infof("counts=%s, duplicates=%d, gaps=%d",
		humanize.Comma(int64(rep.Returned)), len(rep.Duplicates), rep.Gaps)
	if !rep.OK() {
		logger.Errorf("*** counts are not contiguous")
		os.Exit(1)
	}
}

func newInvoker(ctx context.Context) (loadcheck.InvokeFunc, *int64, func() error, error) {
	if *optURL != "" {
		client := http.DefaultClient
		if *optAudience != "" {
			cl, err := idtoken.NewClient(ctx, *optAudience)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("idtoken.NewClient: %w", err)
			}
			client = cl
		}
		return loadcheck.HTTPInvoker(client, *optURL), nil, func() error { return nil }, nil
	}

	cnt, closeFn, err := backend.Open(ctx, optBackend)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("backend.Open: %w", err)
	}

	var baseline *int64
	cur, err := cnt.Get(ctx)
	switch {
	case errors.Is(err, counter.ErrNotFound):
		zero := int64(0)
		baseline = &zero
	case err != nil:
		closeFn()
		return nil, nil, nil, fmt.Errorf("Get: %w", err)
	default:
		if n, ok := cur.Int64(); ok {
			baseline = &n
		}
	}
	logger.Infof("backend=%s, baseline=%s", optBackend.Backend, cur)

	svc := visitor.NewService(cnt, visitor.WithLogger(logger))
	return loadcheck.ServiceInvoker(svc), baseline, closeFn, nil
}
