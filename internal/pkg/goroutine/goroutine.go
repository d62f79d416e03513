// Package goroutine runs bounded background work that outlives a request,
// such as publishing security events after a state change commits.
package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/otpguard/internal/pkg/stacktrace"
	"go.uber.org/atomic"
)

// DefaultMaxGoroutine is multiplied by NumCPU when NewManager receives a
// non-positive limit.
const DefaultMaxGoroutine int = 100

const maxKeptErrors = 64

// Manager runs functions in goroutines with a concurrency limit. Tasks are
// detached from the caller's cancellation but keep its values (trace and
// correlation id).
type Manager struct {
	wg   sync.WaitGroup
	sema chan struct{}

	stateMu sync.RWMutex
	closed  bool

	errMu sync.Mutex
	errs  []error

	running *atomic.Int64
	dropped *atomic.Int64
	failed  *atomic.Int64
}

// NewManager creates a new Manager with the provided maximum concurrency.
func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}

	return &Manager{
		sema:    make(chan struct{}, maxGoroutine),
		running: atomic.NewInt64(0),
		dropped: atomic.NewInt64(0),
		failed:  atomic.NewInt64(0),
	}
}

// Go schedules f. When the manager is closed or saturated the task is
// dropped and a warning is logged.
func (g *Manager) Go(ctx context.Context, f func(ctx context.Context) error) {
	if g == nil {
		return
	}

	g.stateMu.RLock()
	defer g.stateMu.RUnlock()

	if g.closed {
		g.dropped.Inc()
		slog.WarnContext(ctx, "goroutine manager is closed, skipping task")
		return
	}

	select {
	case g.sema <- struct{}{}:
	default:
		g.dropped.Inc()
		slog.WarnContext(ctx, "maximum goroutine limit reached, skipping task")
		return
	}

	taskCtx := context.WithoutCancel(ctx)
	g.running.Inc()
	g.wg.Go(func() {
		defer func() {
			g.running.Dec()
			<-g.sema

			if rvr := recover(); rvr != nil {
				g.failed.Inc()
				slog.ErrorContext(taskCtx, "panic occurred in goroutine", "because", rvr, "stack", stacktrace.InternalPaths(debug.Stack()))
			}
		}()

		if err := f(taskCtx); err != nil {
			g.failed.Inc()
			g.errMu.Lock()
			if len(g.errs) < maxKeptErrors {
				g.errs = append(g.errs, err)
			}
			g.errMu.Unlock()
		}
	})
}

// Running is the number of tasks currently executing.
func (g *Manager) Running() int64 { return g.running.Load() }

// Dropped is the number of tasks rejected because of the limit or shutdown.
func (g *Manager) Dropped() int64 { return g.dropped.Load() }

// Failed is the number of tasks that returned an error or panicked.
func (g *Manager) Failed() int64 { return g.failed.Load() }

// Wait stops accepting tasks, blocks until running ones finish and returns
// the first collected errors.
func (g *Manager) Wait() error {
	if g == nil {
		return nil
	}

	g.stateMu.Lock()
	g.closed = true
	g.stateMu.Unlock()

	g.wg.Wait()

	g.errMu.Lock()
	defer g.errMu.Unlock()
	return errors.Join(g.errs...)
}
