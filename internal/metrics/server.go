package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/systmms/iamrotate/internal/logging"
)

// ServerConfig holds configuration for the metrics HTTP server.
type ServerConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:9090".
	Addr string

	// Path is the path to serve metrics on.
	Path string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration
}

// DefaultServerConfig returns the default metrics server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "127.0.0.1:9090",
		Path:         "/metrics",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server exposes the Prometheus registry over HTTP for the duration of a
// run, so a scraper (or a curl during long batches) can read the counters
// before the process exits.
type Server struct {
	config ServerConfig
	logger *logging.Logger
	server *http.Server
}

// NewServer creates a metrics server. logger may be nil.
func NewServer(config ServerConfig, logger *logging.Logger) *Server {
	return &Server{
		config: config,
		logger: logger,
	}
}

// Handler returns the HTTP handler serving the metrics path plus a
// trivial health endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.config.Path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Start registers the counters and begins serving. The listen happens
// synchronously so a bad address fails the command instead of a
// background goroutine.
func (s *Server) Start() error {
	InitMetrics()

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Warn("metrics server error: %v", err)
			}
		}
	}()

	return nil
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
