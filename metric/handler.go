package metric

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arloliu/go-rhal/logger"
)

// DefaultPath is the URL path metrics are served on.
const DefaultPath = "/metrics"

// Handler returns an http.Handler serving the metrics of r and a /health endpoint.
func Handler(r *Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(DefaultPath, promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return mux
}

// Server serves metrics over HTTP.
type Server struct {
	addr   string
	logger logger.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a metrics server listening on addr. A nil logger means the default logger.
func NewServer(addr string, r *Registry, l logger.Logger) *Server {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Server{
		addr:   addr,
		logger: l,
		server: &http.Server{
			Handler:           Handler(r),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Addr returns the address the server listens on, or nil before it listens.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe serves until Shutdown. It returns nil after a shutdown.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	s.logger.Info("serving metrics", "addr", l.Addr().String(), "path", DefaultPath)

	if err := s.server.Serve(l); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for open scrapes until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
