package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/tckz/visitor-counter/internal/backend"
	"github.com/tckz/visitor-counter/internal/log"
	"go.uber.org/zap"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optLogLevel = flag.String("log-level", "info", "info|warn|error")
	optBackend  backend.Config
)

func init() {
	godotenv.Load()

	optBackend.RegisterFlags(flag.CommandLine)
	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cnt, closeCounter, err := backend.Open(ctx, optBackend)
	if err != nil {
		logger.Fatalf("*** backend.Open: %v", err)
	}
	defer closeCounter()

	n, err := cnt.Get(ctx)
	if err != nil {
		logger.Errorf("Get: %v", err)
		return
	}

	json.NewEncoder(os.Stdout).Encode(map[string]any{
		"backend": optBackend.Backend,
		"key":     optBackend.Key,
		"count":   n,
	})
}
