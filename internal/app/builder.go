package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/studykit/colsync/internal/collection"
	"github.com/studykit/colsync/internal/config"
	"github.com/studykit/colsync/internal/credentials"
	"github.com/studykit/colsync/internal/status"
	"github.com/studykit/colsync/internal/sync"
	"github.com/studykit/colsync/internal/sync/auth"
	"github.com/studykit/colsync/internal/sync/full"
	"github.com/studykit/colsync/internal/sync/incremental"
	"github.com/studykit/colsync/internal/sync/media"
	"github.com/studykit/colsync/internal/sync/orchestrator"
	"github.com/studykit/colsync/internal/tasks"
	"github.com/studykit/colsync/internal/telemetry"
	"github.com/studykit/colsync/internal/transport"
	"github.com/studykit/colsync/internal/versions"
)

// ClientAppOptions is a function that configures the client app builder
type ClientAppOptions func(*clientAppConfig) error

// clientAppConfig collects the components of a ClientApp.
// Every component can be injected for testing; the rest are built from config.
type clientAppConfig struct {
	config *config.Config

	exchanger   transport.Exchanger
	credentials credentials.Store
	network     orchestrator.NetworkMonitor
	wakeLock    orchestrator.WakeLock
	persistence status.StatusPersistence
	checker     sync.AutomaticSyncChecker
	telemetry   *telemetry.Telemetry
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) ClientAppOptions {
	return func(cfg *clientAppConfig) error {
		if c == nil {
			return errors.New("config cannot be nil")
		}
		cfg.config = c
		return nil
	}
}

// WithExchanger replaces the HTTP exchanger used by every sync driver
func WithExchanger(ex transport.Exchanger) ClientAppOptions {
	return func(cfg *clientAppConfig) error {
		cfg.exchanger = ex
		return nil
	}
}

// WithCredentialStore replaces the keyring session store
func WithCredentialStore(store credentials.Store) ClientAppOptions {
	return func(cfg *clientAppConfig) error {
		cfg.credentials = store
		return nil
	}
}

// WithNetworkMonitor replaces the reachability probe of the sync host
func WithNetworkMonitor(monitor orchestrator.NetworkMonitor) ClientAppOptions {
	return func(cfg *clientAppConfig) error {
		cfg.network = monitor
		return nil
	}
}

// WithWakeLock replaces the wake lock built from the wakeLock section
func WithWakeLock(lock orchestrator.WakeLock) ClientAppOptions {
	return func(cfg *clientAppConfig) error {
		cfg.wakeLock = lock
		return nil
	}
}

// WithStatusPersistence replaces the file status persistence
func WithStatusPersistence(p status.StatusPersistence) ClientAppOptions {
	return func(cfg *clientAppConfig) error {
		cfg.persistence = p
		return nil
	}
}

// WithAutomaticSyncChecker replaces the interval check used by automatic syncs
func WithAutomaticSyncChecker(checker sync.AutomaticSyncChecker) ClientAppOptions {
	return func(cfg *clientAppConfig) error {
		cfg.checker = checker
		return nil
	}
}

// WithTelemetry shares providers owned by the caller; the app will not shut them down
func WithTelemetry(t *telemetry.Telemetry) ClientAppOptions {
	return func(cfg *clientAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// NewClientApp wires the orchestrator and its collaborators
func NewClientApp(ctx context.Context, opts ...ClientAppOptions) (*ClientApp, error) {
	cfg := &clientAppConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.config == nil {
		return nil, errors.New("config is required")
	}
	c := cfg.config

	ownsTelemetry := false
	if cfg.telemetry == nil {
		tel, err := telemetry.New(ctx, c.Telemetry)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		cfg.telemetry = tel
		ownsTelemetry = true
	}

	router := transport.NewRouter(c.Server.Endpoint)
	if cfg.exchanger == nil {
		cfg.exchanger = transport.NewHTTPClient(router,
			transport.WithTimeout(c.RequestTimeout()),
			transport.WithMaxResponseSize(c.Server.MaxResponseSize),
		)
	}
	if cfg.network == nil {
		monitor, err := buildNetworkMonitor(router, c.Server.HostNum)
		if err != nil {
			return nil, err
		}
		cfg.network = monitor
	}
	if cfg.wakeLock == nil {
		cfg.wakeLock = buildWakeLock(c.WakeLock)
	}
	if cfg.credentials == nil {
		cfg.credentials = credentials.NewKeyringStore(c.GetProfile())
	}
	if cfg.persistence == nil {
		cfg.persistence = status.NewFileStatusPersistence(c.StatusDir())
	}
	if cfg.checker == nil {
		cfg.checker = &sync.DefaultAutomaticSyncChecker{}
	}

	metrics, err := telemetry.NewSyncMetrics(cfg.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}

	queue := tasks.NewQueue(0)
	orch := buildOrchestrator(cfg, queue, metrics)

	slog.Debug("Client initialized",
		"profile", c.GetProfile(),
		"collection", c.CollectionPath(),
		"custom_endpoint", router.Custom())

	return &ClientApp{
		config:        c,
		orch:          orch,
		credentials:   cfg.credentials,
		persistence:   cfg.persistence,
		checker:       cfg.checker,
		tasks:         queue,
		telemetry:     cfg.telemetry,
		ownsTelemetry: ownsTelemetry,
	}, nil
}

func buildOrchestrator(cfg *clientAppConfig, queue *tasks.Queue, metrics *telemetry.SyncMetrics) *orchestrator.Orchestrator {
	c := cfg.config
	ex := cfg.exchanger
	tracer := cfg.telemetry.Tracer()

	deps := orchestrator.Dependencies{
		Authenticator: auth.New(ex),
		Incremental: incremental.New(ex,
			incremental.WithClientVersion(versions.ClientVersion()),
			incremental.WithTracer(tracer),
		),
		Full:        full.New(ex, full.WithTracer(tracer)),
		Media:       media.New(ex, media.WithTracer(tracer)),
		Collections: collection.NewFileProvider(c.CollectionPath(), c.CollectionOptions()...),
	}

	return orchestrator.New(deps,
		orchestrator.WithNetworkMonitor(cfg.network),
		orchestrator.WithWakeLock(cfg.wakeLock),
		orchestrator.WithTaskWaiter(queue),
		orchestrator.WithStatusRecorder(orchestrator.NewFileStatusRecorder(cfg.persistence, c.GetProfile())),
		orchestrator.WithSyncMetrics(metrics),
		orchestrator.WithTracer(tracer),
		orchestrator.WithPredecessorTimeout(c.PredecessorTimeout()),
		orchestrator.WithPriorTaskTimeout(c.PriorTaskTimeout()),
	)
}

func buildNetworkMonitor(router *transport.Router, hostNum int) (orchestrator.NetworkMonitor, error) {
	addr, err := router.HostAddress(hostNum)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sync host: %w", err)
	}
	return transport.NewDialMonitor(addr, 0), nil
}

func buildWakeLock(c config.WakeLockConfig) orchestrator.WakeLock {
	if !c.Enabled {
		return orchestrator.NoopWakeLock{}
	}
	return &orchestrator.InhibitWakeLock{Command: c.Command, Args: c.Args}
}
