package visitor

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/google/uuid"
)

// Paths served by NewMux. /prod/count is where the website fetches from.
var CountPaths = []string{"/count", "/prod/count"}

func NewMux(s *Service) *http.ServeMux {
	mux := http.NewServeMux()
	for _, p := range CountPaths {
		mux.Handle("GET "+p, s)
	}
	return mux
}

// NewProxyHandler serves API Gateway proxy events through NewMux.
func NewProxyHandler(s *Service) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return httpadapter.New(NewMux(s)).ProxyWithContext
}

// ServeHTTP runs Handle for one request. Failures become a bare 500.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get("X-Request-Id")
	if id == "" {
		id = uuid.NewString()
	}

	res, err := s.Handle(WithRequestID(r.Context(), id), nil)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	for k, v := range res.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.StatusCode)
	w.Write([]byte(res.Body))
}
