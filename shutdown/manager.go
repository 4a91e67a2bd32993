package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go_imgutils/core"

	"go.uber.org/zap"
)

// DefaultTimeout bounds how long Shutdown waits for jobs and hooks.
const DefaultTimeout = 30 * time.Second

// Manager ties a root context to SIGINT/SIGTERM. The first signal cancels
// Context; a second one exits the process at once with the signal's exit
// code. Shutdown then waits for tracked jobs and runs the hooks.
//
//	m := shutdown.NewManager(logger, shutdown.WithTimeout(cfg.ShutdownTimeout))
//	m.Register("database", shutdown.PriorityStorage, func(context.Context) error {
//	    return database.Close()
//	})
//	m.Start()
//	runLoop(m.Context())
//	err := m.Shutdown()
//	os.Exit(m.ExitCode())
type Manager struct {
	logger  *zap.Logger
	timeout time.Duration
	exit    func(int)

	ctx    context.Context
	cancel context.CancelFunc

	jobs    *JobTracker
	hooks   *Registry
	signals *SignalCounter
	sigChan chan os.Signal

	mu       sync.Mutex
	started  bool
	shutdown bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout sets the shutdown budget. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithExit replaces os.Exit for the forced-exit path.
func WithExit(exit func(int)) Option {
	return func(m *Manager) { m.exit = exit }
}

// NewManager returns a Manager whose context is live until a signal or
// Stop.
func NewManager(logger *zap.Logger, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		logger:  logger,
		timeout: DefaultTimeout,
		exit:    os.Exit,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    NewJobTracker(),
		hooks:   NewRegistry(),
		sigChan: make(chan os.Signal, 2),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.signals = NewSignalCounter(2, func(sig os.Signal) {
		m.logger.Warn("Second signal received, exiting immediately", zap.String("signal", sig.String()))
		m.exit(core.ExitCodeForSignal(sig))
	})
	return m
}

// Context is cancelled when shutdown starts.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a cleanup hook; see the Priority constants.
func (m *Manager) Register(name string, priority int, fn Func) {
	m.hooks.Register(name, priority, fn)
	m.logger.Debug("Registered shutdown hook", zap.String("name", name), zap.Int("priority", priority))
}

// Start listens for SIGINT and SIGTERM. Repeated calls are no-ops.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range m.sigChan {
			m.deliver(sig)
		}
	}()
}

func (m *Manager) deliver(sig os.Signal) {
	if m.signals.Record(sig) == 1 {
		m.logger.Info("Shutdown signal received, finishing current jobs",
			zap.String("signal", sig.String()))
		m.cancel()
	}
}

// Stop cancels Context without a signal, as a service manager does.
func (m *Manager) Stop() {
	m.cancel()
}

// Track runs fn as an in-flight job. After shutdown starts it returns
// ErrClosed without calling fn.
func (m *Manager) Track(ctx context.Context, name string, fn func(context.Context) error) error {
	if !m.jobs.Begin() {
		m.logger.Debug("Job rejected during shutdown", zap.String("job", name))
		return ErrClosed
	}
	defer m.jobs.End()

	if err := ctx.Err(); err != nil {
		return err
	}
	if m.ctx.Err() != nil {
		return context.Canceled
	}
	return fn(ctx)
}

// Shutdown refuses new jobs, waits for running ones and runs the hooks,
// all within the timeout. Hooks always get at least one second. Only the
// first call does anything.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	started := m.started
	m.mu.Unlock()

	m.cancel()
	if started {
		signal.Stop(m.sigChan)
	}

	begin := time.Now()
	m.jobs.Close()
	if n := m.jobs.Active(); n > 0 {
		m.logger.Info("Waiting for running jobs", zap.Int64("active", n), zap.Duration("timeout", m.timeout))
	}
	if err := m.jobs.Wait(m.timeout); err != nil {
		m.logger.Warn("Jobs still running at shutdown deadline", zap.Int64("active", m.jobs.Active()))
	}

	remaining := max(m.timeout-time.Since(begin), time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), remaining)
	defer cancel()

	m.logger.Debug("Running shutdown hooks", zap.Strings("hooks", m.hooks.Names()))
	errs := m.hooks.Run(ctx)
	for _, err := range errs {
		m.logger.Error("Shutdown hook failed", zap.Error(err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown: %d hook(s) failed: %w", len(errs), errs[0])
	}
	m.logger.Info("Shutdown complete", zap.Duration("duration", time.Since(begin)))
	return nil
}

// ExitCode is the process exit code for the signal that stopped the
// manager, or 0.
func (m *Manager) ExitCode() int {
	return core.ExitCodeForSignal(m.signals.First())
}

// ActiveJobs returns the number of tracked jobs still running.
func (m *Manager) ActiveJobs() int64 {
	return m.jobs.Active()
}

// IsShuttingDown reports whether Shutdown was called or Context is done.
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown || m.ctx.Err() != nil
}

// Hooks lists registered hook names in run order.
func (m *Manager) Hooks() []string {
	return m.hooks.Names()
}
