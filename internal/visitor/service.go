// Package visitor turns an invocation into one atomic counter increment and
// a JSON response.
package visitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/tckz/visitor-counter/internal/counter"
	"go.uber.org/zap"
)

// Response matches the Lambda proxy integration response shape.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body"`
}

type body struct {
	Count counter.Count `json:"count"`
}

type Service struct {
	counter     counter.Counter
	logger      *zap.SugaredLogger
	allowOrigin string
}

type Option func(s *Service)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithAllowOrigin sets Access-Control-Allow-Origin on every response.
func WithAllowOrigin(origin string) Option {
	return func(s *Service) { s.allowOrigin = origin }
}

func NewService(c counter.Counter, opts ...Option) *Service {
	s := &Service{
		counter: c,
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle increments the counter once and reports the new value. The event is
// not inspected. Storage and serialization failures are returned as errors,
// never as a response.
func (s *Service) Handle(ctx context.Context, event json.RawMessage) (*Response, error) {
	logger := s.logger
	if id := requestID(ctx); id != "" {
		logger = logger.With(zap.String("requestId", id))
	}

	n, err := s.counter.Up(ctx)
	if err != nil {
		logger.With(zap.Error(err)).Errorf("counter.Up failed")
		return nil, fmt.Errorf("counter.Up: %w", err)
	}

	b, err := json.Marshal(body{Count: n})
	if err != nil {
		logger.With(zap.Error(err)).Errorf("json.Marshal failed: count=%s", n)
		return nil, fmt.Errorf("json.Marshal: %w", err)
	}

	logger.Debugf("count=%s", n)

	res := &Response{
		StatusCode: http.StatusOK,
		Body:       string(b),
	}
	if s.allowOrigin != "" {
		res.Headers = map[string]string{"Access-Control-Allow-Origin": s.allowOrigin}
	}
	return res, nil
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		return lc.AwsRequestID
	}
	return ""
}
