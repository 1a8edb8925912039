package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	"github.com/tckz/visitor-counter/internal/backend"
	"github.com/tckz/visitor-counter/internal/log"
	"github.com/tckz/visitor-counter/internal/visitor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optLogLevel    *string
	optAddr        *string
	optLambdaMode  *string
	optAllowOrigin *string
	optBackend     backend.Config
)

func init() {
	godotenv.Load()

	// Defaults read the environment, so define flags after .env is loaded.
	optLogLevel = flag.String("log-level", backend.Getenv("LOG_LEVEL", "info"), "debug|info|warn|error")
	optAddr = flag.String("addr", ":"+backend.Getenv("PORT", "8080"), "listen address when not running on Lambda")
	optLambdaMode = flag.String("lambda-mode", backend.Getenv("LAMBDA_MODE", "direct"), "direct|proxy")
	optAllowOrigin = flag.String("allow-origin", os.Getenv("ALLOW_ORIGIN"), "value of Access-Control-Allow-Origin")
	optBackend.RegisterFlags(flag.CommandLine)
	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Sync()

	ctx := context.Background()

	cnt, closeCounter, err := backend.Open(ctx, optBackend)
	if err != nil {
		logger.Fatalf("*** backend.Open: %v", err)
	}
	defer closeCounter()

	svc := visitor.NewService(cnt,
		visitor.WithLogger(logger.With(zap.String("backend", optBackend.Backend))),
		visitor.WithAllowOrigin(*optAllowOrigin),
	)

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		logger.Infof("Running in Lambda environment, mode=%s", *optLambdaMode)
		switch *optLambdaMode {
		case "direct":
			lambda.Start(svc.Handle)
		case "proxy":
			lambda.Start(visitor.NewProxyHandler(svc))
		default:
			logger.Fatalf("*** unknown --lambda-mode: %s", *optLambdaMode)
		}
		return
	}

	if err := serve(ctx, svc); err != nil {
		logger.Fatalf("*** serve: %v", err)
	}
	logger.Infof("done")
}

func serve(ctx context.Context, svc *visitor.Service) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:              *optAddr,
		Handler:           visitor.NewMux(svc),
		ReadHeaderTimeout: 5 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Infof("listening on %s", *optAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		logger.Infof("shutting down")
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		return srv.Shutdown(sctx)
	})
	return eg.Wait()
}
