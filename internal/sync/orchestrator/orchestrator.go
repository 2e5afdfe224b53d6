package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	stdsync "sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/studykit/colsync/internal/collection"
	"github.com/studykit/colsync/internal/otel"
	"github.com/studykit/colsync/internal/sync"
	"github.com/studykit/colsync/internal/telemetry"
	"github.com/studykit/colsync/internal/transport"
)

const (
	// DefaultPredecessorTimeout bounds how long a job waits for the job before it
	DefaultPredecessorTimeout = 30 * time.Second

	// DefaultPriorTaskTimeout bounds how long a sync waits for background tasks
	DefaultPriorTaskTimeout = 5 * time.Second
)

var (
	// ErrMissingDependency is returned when a request needs a driver that was not configured
	ErrMissingDependency = errors.New("orchestrator dependency not configured")

	// ErrNoNetwork is the error carried by jobs rejected by the connectivity pre-check
	ErrNoNetwork = errors.New("no network connection")

	// ErrShuttingDown is returned for requests submitted after Shutdown began
	ErrShuttingDown = errors.New("orchestrator is shutting down")

	// ErrPriorTaskTimeout marks a collection that failed to open after background
	// tasks did not finish in time, a sign of possible corruption
	ErrPriorTaskTimeout = errors.New("background task did not finish in time")

	errPanic = errors.New("sync job panicked")
)

// Dependencies are the phase drivers and the collection a job runs against
type Dependencies struct {
	Authenticator sync.Authenticator
	Incremental   sync.IncrementalSyncer
	Full          sync.FullSyncer
	Media         sync.MediaSyncer
	Collections   collection.Provider
}

// Orchestrator owns the single in-flight job
type Orchestrator struct {
	deps Dependencies

	reporter Reporter
	network  NetworkMonitor
	tasks    TaskWaiter
	status   StatusRecorder
	metrics  *telemetry.SyncMetrics
	tracer   trace.Tracer
	logger   *slog.Logger
	wakeLock WakeLock

	predecessorTimeout time.Duration
	priorTaskTimeout   time.Duration

	lease *lease

	// current is the newest accepted job, active the one whose body is executing
	current atomic.Pointer[JobHandle]
	active  atomic.Pointer[JobHandle]

	mu      stdsync.Mutex
	closed  bool
	running stdsync.WaitGroup
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithWakeLock sets the lock held while a job runs
func WithWakeLock(lock WakeLock) Option {
	return func(o *Orchestrator) {
		o.wakeLock = lock
	}
}

// WithReporter sets the crash reporter
func WithReporter(reporter Reporter) Option {
	return func(o *Orchestrator) {
		o.reporter = reporter
	}
}

// WithNetworkMonitor sets the connectivity pre-check
func WithNetworkMonitor(monitor NetworkMonitor) Option {
	return func(o *Orchestrator) {
		o.network = monitor
	}
}

// WithTaskWaiter sets the background task layer sync jobs wait on
func WithTaskWaiter(waiter TaskWaiter) Option {
	return func(o *Orchestrator) {
		o.tasks = waiter
	}
}

// WithStatusRecorder sets where sync job status is persisted
func WithStatusRecorder(recorder StatusRecorder) Option {
	return func(o *Orchestrator) {
		o.status = recorder
	}
}

// WithSyncMetrics sets the sync metrics
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

// WithTracer enables tracing of jobs
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

// WithPredecessorTimeout sets how long a job waits for the job before it
func WithPredecessorTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.predecessorTimeout = d
		}
	}
}

// WithPriorTaskTimeout sets how long a sync waits for background tasks
func WithPriorTaskTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.priorTaskTimeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an Orchestrator
func New(deps Dependencies, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deps:               deps,
		reporter:           LogReporter{},
		network:            transport.AlwaysOnline{},
		tasks:              NoTasks{},
		status:             noStatus{},
		logger:             slog.Default(),
		wakeLock:           NoopWakeLock{},
		predecessorTimeout: DefaultPredecessorTimeout,
		priorTaskTimeout:   DefaultPriorTaskTimeout,
	}

	for _, opt := range opts {
		opt(o)
	}

	o.lease = newLease(o.wakeLock)
	return o
}

// Login starts a login job. The error is non-nil only for an invalid request or
// after Shutdown began.
func (o *Orchestrator) Login(ctx context.Context, req sync.Request, listener Listener) (*JobHandle, error) {
	if req.Kind != sync.KindLogin {
		return nil, fmt.Errorf("%w: login called with a %s request", sync.ErrInvalidRequest, req.Kind)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if o.deps.Authenticator == nil {
		return nil, fmt.Errorf("%w: authenticator", ErrMissingDependency)
	}
	return o.submit(ctx, req, listener)
}

// Sync starts a sync job. The error is non-nil only for an invalid request or
// after Shutdown began.
func (o *Orchestrator) Sync(ctx context.Context, req sync.Request, listener Listener) (*JobHandle, error) {
	if req.Kind != sync.KindSync {
		return nil, fmt.Errorf("%w: sync called with a %s request", sync.ErrInvalidRequest, req.Kind)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	switch {
	case o.deps.Collections == nil:
		return nil, fmt.Errorf("%w: collection provider", ErrMissingDependency)
	case o.deps.Incremental == nil || o.deps.Full == nil:
		return nil, fmt.Errorf("%w: collection syncers", ErrMissingDependency)
	case req.SyncMedia && o.deps.Media == nil:
		return nil, fmt.Errorf("%w: media syncer", ErrMissingDependency)
	}
	return o.submit(ctx, req, listener)
}

// Current returns the most recently started job, or nil once it finished
func (o *Orchestrator) Current() *JobHandle {
	return o.current.Load()
}

// Cancel requests cancellation of the executing job and of a job waiting for
// it. It reports whether either accepted the request.
func (o *Orchestrator) Cancel() bool {
	accepted := false
	active := o.active.Load()
	if active != nil {
		accepted = active.Cancel()
	}
	if job := o.current.Load(); job != nil && job != active {
		accepted = job.Cancel() || accepted
	}
	return accepted
}

// IsCancellable reports whether the executing job, or the current one when
// nothing executes yet, would honor Cancel
func (o *Orchestrator) IsCancellable() bool {
	job := o.active.Load()
	if job == nil {
		job = o.current.Load()
	}
	return job != nil && job.IsCancellable()
}

// Shutdown rejects new requests, cancels running jobs if possible and waits
// for every job to finish
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.Cancel()

	done := make(chan struct{})
	go func() {
		o.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for sync jobs: %w", ctx.Err())
	}
}

func (o *Orchestrator) submit(ctx context.Context, req sync.Request, listener Listener) (*JobHandle, error) {
	if o.isClosed() {
		return nil, ErrShuttingDown
	}
	if !req.AllowOffline && !o.network.Online(ctx) {
		return o.disconnected(req, listener), nil
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrShuttingDown
	}
	predecessor := o.current.Load()
	job := newJobHandle(req.Kind, predecessor)
	o.current.Store(job)
	o.running.Add(1)
	o.mu.Unlock()

	o.logger.Info("Starting job",
		"job_id", job.ID(),
		"kind", req.Kind.String(),
		"predecessor_id", job.PredecessorID())

	go o.run(context.WithoutCancel(ctx), job, predecessor, req, newRelay(listener))
	return job, nil
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// disconnected completes a job that never started because the network is down
func (o *Orchestrator) disconnected(req sync.Request, listener Listener) *JobHandle {
	job := newJobHandle(req.Kind, nil)
	outcome := sync.Outcome{Kind: sync.OutcomeNetworkError, Reason: sync.ReasonNoNetwork, Err: ErrNoNetwork}

	o.logger.Info("Skipping job, no network connection", "job_id", job.ID(), "kind", req.Kind.String())

	rl := newRelay(listener)
	job.finish(outcome)
	rl.close(func(l Listener) { l.OnDisconnected() })
	rl.wait()
	close(job.done)
	return job
}

func (o *Orchestrator) run(ctx context.Context, job, predecessor *JobHandle, req sync.Request, rl *relay) {
	defer o.running.Done()

	start := time.Now()
	ctx, span := otel.StartSpan(ctx, o.tracer, "orchestrator."+req.Kind.String(),
		trace.WithAttributes(
			otel.AttrJobID.String(job.ID()),
			otel.AttrJobKind.String(req.Kind.String()),
			otel.AttrHostNum.Int(req.HostRoute.HostNum),
		))
	defer span.End()

	// Default in case the body never assigns an outcome
	outcome := sync.UnknownFailure("unexpected failure", nil)
	defer func() {
		if p := recover(); p != nil {
			o.logger.Error("Job panicked",
				"job_id", job.ID(),
				"panic", p,
				"stack", string(debug.Stack()))
			outcome = sync.UnknownFailure("unexpected failure", fmt.Errorf("%w: %v", errPanic, p))
		}
		o.lease.release(job)
		o.finish(ctx, span, job, req, outcome, time.Since(start), rl)
	}()

	o.awaitPredecessor(ctx, job, predecessor)
	o.active.Store(job)
	o.lease.acquire(job)

	if req.Kind == sync.KindSync {
		if err := o.status.RecordStart(ctx); err != nil {
			o.logger.Warn("Failed to record sync start", "job_id", job.ID(), "error", err)
		}
	}

	rl.post(func(l Listener) { l.OnStart() })

	sess := sync.NewSession(req.SessionKey, req.HostRoute,
		func(p sync.Progress) {
			rl.post(func(l Listener) { l.OnProgress(p) })
		},
		job.cancelRequested,
	)

	if req.Kind == sync.KindLogin {
		outcome = o.login(ctx, job, req, sess)
	} else {
		outcome = o.syncCollection(ctx, job, req, sess)
	}
}

func (o *Orchestrator) awaitPredecessor(ctx context.Context, job, predecessor *JobHandle) {
	if predecessor == nil {
		return
	}

	timer := time.NewTimer(o.predecessorTimeout)
	defer timer.Stop()

	select {
	case <-predecessor.Done():
	case <-timer.C:
		o.logger.Warn("Previous job did not finish in time, superseding it",
			"job_id", job.ID(),
			"predecessor_id", predecessor.ID(),
			"timeout", o.predecessorTimeout)
		o.metrics.RecordSuperseded(ctx)
	}
}

// finish persists and delivers the terminal outcome. Done is closed only after
// the listener's terminal callback has returned.
func (o *Orchestrator) finish(
	ctx context.Context,
	span trace.Span,
	job *JobHandle,
	req sync.Request,
	outcome sync.Outcome,
	elapsed time.Duration,
	rl *relay,
) {
	if req.Kind == sync.KindSync {
		if err := o.status.RecordOutcome(ctx, outcome); err != nil {
			o.logger.Warn("Failed to record sync outcome", "job_id", job.ID(), "error", err)
		}
	}

	o.metrics.RecordJobDuration(ctx, req.Kind.String(), outcome.Kind.String(), elapsed)
	if outcome.Media != nil {
		o.metrics.RecordMediaFiles(ctx, telemetry.DirectionUpload, outcome.Media.Uploaded)
		o.metrics.RecordMediaFiles(ctx, telemetry.DirectionDownload, outcome.Media.Downloaded)
	}

	otel.RecordOutcome(span, outcome.Kind.String(), !outcome.Succeeded())
	if outcome.Reportable() {
		err := outcome.Err
		if err == nil {
			err = errors.New(outcome.String())
		}
		otel.RecordError(span, err)
		o.reporter.Report(ctx, err, req.Kind.String())
	}

	o.logger.Info("Job finished",
		"job_id", job.ID(),
		"kind", req.Kind.String(),
		"outcome", outcome.String(),
		"duration", elapsed)

	job.finish(outcome)
	rl.close(func(l Listener) { l.OnFinish(outcome) })
	rl.wait()

	o.active.CompareAndSwap(job, nil)
	o.current.CompareAndSwap(job, nil)
	close(job.done)
}
