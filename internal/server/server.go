// Package server is the HTTP boundary: it validates request shape, calls the
// materializer and serves stored artifacts.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/netutil"

	"github.com/snapetech/tubecache/internal/cache"
	"github.com/snapetech/tubecache/internal/materializer"
	"github.com/snapetech/tubecache/internal/metrics"
	"github.com/snapetech/tubecache/internal/provider"
	"github.com/snapetech/tubecache/internal/store"
)

// Pipeline is the materializer surface the handlers use.
type Pipeline interface {
	materializer.Interface
	Lookup(req materializer.Request) (cache.Key, bool, error)
	Streams(ctx context.Context, ref string) (string, []provider.Descriptor, error)
}

type Server struct {
	Addr           string
	Pipeline       Pipeline
	Store          store.Store
	AllowedOrigins []string
	MaxConns       int              // 0 = unlimited
	Metrics        *metrics.Metrics // optional
	// Ready reports readiness for /healthz; nil means always ready.
	Ready func(ctx context.Context) error
}

// Handler returns the routed handler with CORS, tracing, access logging and
// panic recovery applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/download", s.route("/download", s.serveDownload()))
	mux.Handle("/streams", s.route("/streams", s.serveStreams()))
	mux.Handle("/healthz", s.route("/healthz", s.serveHealth()))
	mux.Handle("/metrics", s.Metrics.Handler())
	mux.Handle("/", s.route("/", s.serveRoot()))

	var h http.Handler = mux
	h = recoverPanics(h)
	h = otelhttp.NewHandler(h, "tube-cache.http")
	if len(s.AllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: s.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead},
			ExposedHeaders: []string{"Content-Disposition", "X-Cache"},
		}).Handler(h)
	}
	return logRequests(h)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := s.Addr
	if addr == "" {
		addr = ":8000"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if s.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.MaxConns)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("server: listening addr=%s max_conns=%d origins=%v", ln.Addr(), s.MaxConns, s.AllowedOrigins)
		serverErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Print("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server: shutdown: %v", err)
		}
		<-serverErr
		return nil
	}
}

// route records the request count per route.
func (s *Server) route(name string, next http.Handler) http.Handler {
	if s.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		s.Metrics.Request(name, sw.code())
	})
}
