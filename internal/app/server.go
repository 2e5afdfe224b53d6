// Package app wires the colsync components into the two programs the command
// line runs: a sync client for one profile and a development sync server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/studykit/colsync/internal/config"
	"github.com/studykit/colsync/internal/syncserver"
	"github.com/studykit/colsync/internal/telemetry"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 5 * time.Minute
	defaultIdleTimeout  = 60 * time.Second
)

// DevServerAppOptions is a function that configures the dev server builder
type DevServerAppOptions func(*devServerConfig) error

type devServerConfig struct {
	config    *config.Config
	address   string
	dataDir   string
	telemetry *telemetry.Telemetry
}

// WithServerConfig sets the configuration the server reads its devServer section from
func WithServerConfig(c *config.Config) DevServerAppOptions {
	return func(cfg *devServerConfig) error {
		if c == nil {
			return errors.New("config cannot be nil")
		}
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) DevServerAppOptions {
	return func(cfg *devServerConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, err := net.SplitHostPort(addr)
		if err != nil || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(net.JoinHostPort(host, port)); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithServerDataDir overrides the directory account collections are kept in
func WithServerDataDir(dir string) DevServerAppOptions {
	return func(cfg *devServerConfig) error {
		cfg.dataDir = strings.TrimSpace(dir)
		return nil
	}
}

// WithServerTelemetry instruments requests with the given providers
func WithServerTelemetry(t *telemetry.Telemetry) DevServerAppOptions {
	return func(cfg *devServerConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// DevServerApp serves the sync protocols for the accounts of the devServer section
type DevServerApp struct {
	server     *syncserver.Server
	httpServer *http.Server
}

// NewDevServerApp builds the sync server and its HTTP listener configuration
func NewDevServerApp(_ context.Context, opts ...DevServerAppOptions) (*DevServerApp, error) {
	cfg := &devServerConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.config == nil {
		return nil, errors.New("config is required")
	}
	dev := cfg.config.DevServer
	if len(dev.Users) == 0 {
		return nil, errors.New("devServer.users must define at least one account")
	}
	if cfg.address == "" {
		cfg.address = cfg.config.DevServerAddr()
	}
	if cfg.dataDir == "" {
		cfg.dataDir = cfg.config.DevServerDataDir()
	}

	serverOpts := []syncserver.Option{
		syncserver.WithUsers(dev.Users),
		syncserver.WithMinClientVersion(dev.MinClientVersion),
		syncserver.WithMessage(dev.Message),
	}
	if cfg.telemetry != nil {
		metrics, err := telemetry.NewServerMetrics(cfg.telemetry.MeterProvider())
		if err != nil {
			return nil, fmt.Errorf("failed to create server metrics: %w", err)
		}
		serverOpts = append(serverOpts, syncserver.WithMiddlewares(
			metrics.Middleware,
			telemetry.TracingMiddleware(cfg.telemetry.TracerProvider()),
		))
		slog.Info("HTTP metrics middleware enabled")
	}

	server := syncserver.New(cfg.dataDir, serverOpts...)
	return &DevServerApp{
		server: server,
		httpServer: &http.Server{
			Addr:         cfg.address,
			Handler:      server.Handler(),
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
			IdleTimeout:  defaultIdleTimeout,
		},
	}, nil
}

// Start listens on the configured address and blocks until the server stops
func (app *DevServerApp) Start() error {
	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.Serve(listener)
}

// Serve accepts connections on listener and blocks until the server stops
func (app *DevServerApp) Serve(listener net.Listener) error {
	slog.Info("Sync server listening", "address", listener.Addr().String())
	if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server and closes every account collection
func (app *DevServerApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down sync server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}
	if err := app.server.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("failed to close account collections: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("Sync server shutdown complete")
	return nil
}

// GetHTTPServer returns the HTTP server
func (app *DevServerApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
