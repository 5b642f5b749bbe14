// Package server runs the HTTP listener and the background components that
// live alongside it, and tears both down in order on shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc is a function that shuts down a component gracefully.
type ShutdownFunc func(ctx context.Context) error

// Config holds listener settings.
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration // zero means 60s
	ShutdownTimeout time.Duration
}

// Server wraps http.Server with background components and graceful shutdown.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger

	mu            sync.Mutex
	shutdownFuncs []ShutdownFunc
	background    []component
	bgWG          sync.WaitGroup
	listenerAddr  chan net.Addr
}

type component struct {
	name string
	run  func(ctx context.Context) error
}

// New creates a new Server instance.
func New(handler http.Handler, cfg Config, logger *slog.Logger) *Server {
	idle := cfg.IdleTimeout
	if idle == 0 {
		idle = 60 * time.Second
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       idle,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
		listenerAddr:    make(chan net.Addr, 1),
	}
}

// Background registers a component started by Run. Its context is cancelled
// only after every OnShutdown hook has returned.
func (s *Server) Background(name string, run func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.background = append(s.background, component{name: name, run: run})
}

// OnShutdown registers a function to be called during graceful shutdown.
// Shutdown functions are called in reverse order (LIFO) after the HTTP server stops.
func (s *Server) OnShutdown(name string, fn ShutdownFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdownFuncs = append(s.shutdownFuncs, func(ctx context.Context) error {
		s.logger.Info("shutting down component", "name", name)
		if err := fn(ctx); err != nil {
			s.logger.Error("component shutdown error", "name", name, "error", err)
			return fmt.Errorf("%s: %w", name, err)
		}
		s.logger.Info("component stopped", "name", name)
		return nil
	})
}

// Run serves until ctx is done, SIGINT/SIGTERM arrives or the listener
// fails, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	s.listenerAddr <- ln.Addr()

	bgCtx, cancelBackground := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelBackground()
	s.startBackground(bgCtx)

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case err := <-serverErr:
		runErr = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received", "cause", context.Cause(ctx))
	}

	if err := s.gracefulShutdown(cancelBackground); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// ListenAddr blocks until Run has bound its listener and returns the address.
func (s *Server) ListenAddr() net.Addr {
	addr := <-s.listenerAddr
	s.listenerAddr <- addr
	return addr
}

func (s *Server) startBackground(ctx context.Context) {
	s.mu.Lock()
	components := append([]component(nil), s.background...)
	s.mu.Unlock()

	for _, c := range components {
		s.bgWG.Add(1)
		go func(c component) {
			defer s.bgWG.Done()
			if err := c.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("background component stopped", "name", c.name, "error", err)
			}
		}(c)
	}
}

// gracefulShutdown stops the listener, runs the hooks newest first, then
// cancels and waits for background components.
func (s *Server) gracefulShutdown(cancelBackground context.CancelFunc) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.logger.Info("phase 1: stopping HTTP server", "timeout", s.shutdownTimeout)
	s.httpServer.SetKeepAlivesEnabled(false)
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.mu.Lock()
	funcs := s.shutdownFuncs
	s.mu.Unlock()

	s.logger.Info("phase 2: stopping registered components", "count", len(funcs))
	var errs []error
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	cancelBackground()
	done := make(chan struct{})
	go func() {
		s.bgWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, errors.New("background components did not stop before the shutdown timeout"))
	}

	if len(errs) > 0 {
		s.logger.Error("shutdown completed with errors", "error_count", len(errs))
		return errors.Join(errs...)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}
