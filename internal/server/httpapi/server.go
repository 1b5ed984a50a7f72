// Package httpapi exposes the identity policy over a small HTTP API:
// login, profile, refresh and logout, plus health and metrics endpoints.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/sqlidentity/internal/logging"
	"github.com/dmitrijs2005/sqlidentity/internal/server/identity"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// HTTPServer serves the identity API.
type HTTPServer struct {
	address  string
	policy   *identity.Policy
	gatherer prometheus.Gatherer
	logger   logging.Logger
}

// NewHTTPServer builds the server; gatherer backs /metrics and may be nil to
// leave the endpoint out.
func NewHTTPServer(a string, l logging.Logger, p *identity.Policy, gatherer prometheus.Gatherer) *HTTPServer {
	return &HTTPServer{
		address:  a,
		policy:   p,
		gatherer: gatherer,
		logger:   l.With("module", "http_server"),
	}
}

// Handler returns the routed API.
func (s *HTTPServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestLogging)

	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := r.NewRoute().Subrouter()
	api.Use(identity.Middleware(s.policy))
	api.HandleFunc("/login", s.login).Methods(http.MethodPost)
	api.HandleFunc("/profile", s.profile).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.refresh).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.logout).Methods(http.MethodPost)

	return r
}

// Run listens on the configured address and serves until ctx is done.
func (s *HTTPServer) Run(ctx context.Context) error {
	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *HTTPServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server",
		"address", ln.Addr().String(),
		"token_header", s.policy.ResponseHeader(),
	)

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
