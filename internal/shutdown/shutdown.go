// Package shutdown coordinates an orderly stop of long-running commands:
// the development server and the interactive view register their cleanups
// here and are released on SIGINT/SIGTERM or an explicit Shutdown.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// CleanupFunc releases one resource. The context is cancelled when the
// shutdown deadline passes.
type CleanupFunc func(ctx context.Context) error

type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Manager handles graceful shutdown coordination.
type Manager struct {
	logger log.FieldLogger

	mu       sync.Mutex
	cleanups []cleanupEntry
	reason   string

	shutdownCh chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	once       sync.Once
	stopSignal func()
}

// NewManager creates a new shutdown manager. A nil logger uses the standard logrus logger.
func NewManager(logger log.FieldLogger) *Manager {
	if logger == nil {
		logger = log.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		logger:     logger,
		shutdownCh: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		stopSignal: func() {},
	}
}

// RegisterCleanup registers a cleanup function to be called during shutdown.
// Cleanup functions are called in LIFO order (last registered, first called).
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
}

// HandleSignals starts shutdown on the first SIGINT or SIGTERM (or the given
// signals, when any are passed).
func (m *Manager) HandleSignals(sigs ...os.Signal) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	stop := make(chan struct{})
	var stopOnce sync.Once
	m.mu.Lock()
	m.stopSignal = func() {
		stopOnce.Do(func() {
			signal.Stop(ch)
			close(stop)
		})
	}
	m.mu.Unlock()

	go func() {
		select {
		case sig := <-ch:
			m.shutdownWithReason(sig.String())
		case <-stop:
		}
	}()
}

// Shutdown initiates a graceful shutdown.
// Safe to call multiple times; only the first call has effect.
func (m *Manager) Shutdown() {
	m.shutdownWithReason("requested")
}

func (m *Manager) shutdownWithReason(reason string) {
	m.once.Do(func() {
		m.mu.Lock()
		m.reason = reason
		m.mu.Unlock()

		m.logger.Debugf("shutdown initiated (%s)", reason)
		m.cancel()
		close(m.shutdownCh)
	})
}

// runCleanups executes all cleanup functions in LIFO order, logging and
// collecting failures without stopping.
func (m *Manager) runCleanups(ctx context.Context) error {
	m.mu.Lock()
	cleanups := make([]cleanupEntry, len(m.cleanups))
	copy(cleanups, m.cleanups)
	m.cleanups = nil
	m.mu.Unlock()

	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		c := cleanups[i]
		if err := c.fn(ctx); err != nil {
			m.logger.Warnf("cleanup %s failed: %v", c.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		m.logger.Debugf("cleanup %s done", c.name)
	}
	return errors.Join(errs...)
}

// Wait runs the registered cleanups and waits for them to finish.
// Returns ctx.Err() when the deadline passes first, otherwise the joined
// cleanup errors. Each cleanup runs at most once.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	stop := m.stopSignal
	m.mu.Unlock()
	stop()

	done := make(chan error, 1)
	go func() {
		done <- m.runCleanups(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once shutdown has been initiated.
func (m *Manager) Done() <-chan struct{} {
	return m.shutdownCh
}

// IsShutdown returns true if shutdown has been initiated.
func (m *Manager) IsShutdown() bool {
	select {
	case <-m.shutdownCh:
		return true
	default:
		return false
	}
}

// Reason returns what initiated the shutdown, or "" when it has not started.
func (m *Manager) Reason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

// Context returns a context that is cancelled when shutdown is initiated.
func (m *Manager) Context() context.Context {
	return m.ctx
}
