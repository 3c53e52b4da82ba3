package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/siemql/siemql/internal/config"
	"github.com/siemql/siemql/internal/metrics"
	"github.com/siemql/siemql/internal/pkg/logger"
	"github.com/siemql/siemql/internal/pkg/middleware"
)

// ShutdownTimeout bounds how long Run waits for in-flight requests.
const ShutdownTimeout = 30 * time.Second

// Server is the HTTP server for the front end, health checks and metrics.
type Server struct {
	cfg     config.WebConfig
	handler *Handler
	metrics *metrics.Metrics
	limiter *middleware.RateLimiter
	log     *logger.Logger
	ready   atomic.Bool
}

// NewServer creates a server for h. m may be nil to disable /metrics.
func NewServer(cfg config.WebConfig, h *Handler, m *metrics.Metrics, log *logger.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		handler: h,
		metrics: m,
		log:     log,
	}
	if cfg.RateLimit > 0 {
		rlCfg := middleware.DefaultRateLimiterConfig()
		rlCfg.RequestsPerSecond = cfg.RateLimit
		if cfg.Burst > 0 {
			rlCfg.Burst = cfg.Burst
		}
		s.limiter = middleware.NewRateLimiter(rlCfg)
	}
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// SetReady marks the server ready (or not) for /readyz.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.handler.RegisterRoutes(mux)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	var handler http.Handler = mux
	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}
	if s.metrics != nil {
		handler = metrics.HTTPMiddleware(s.metrics, handler)
	}
	handler = loggingMiddleware(handler, s.log)
	handler = middleware.RequestID(handler)
	handler = recoveryMiddleware(handler, s.log)
	return handler
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No write timeout: /events streams for as long as the client stays.
		IdleTimeout: 120 * time.Second,
	}
	if s.limiter != nil {
		defer s.limiter.Close()
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Web server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()
	s.SetReady(true)

	select {
	case err := <-errCh:
		s.SetReady(false)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	s.SetReady(false)
	s.log.Info("Shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	return nil
}

// recoveryMiddleware turns handler panics into a sanitized 500.
func recoveryMiddleware(next http.Handler, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.WithContext(r.Context()).Error("Panic recovered in HTTP handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":   "internal server error",
					"code":    "INTERNAL_ERROR",
					"message": "An unexpected error occurred. Please try again.",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(next http.Handler, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		log.WithContext(r.Context()).Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
