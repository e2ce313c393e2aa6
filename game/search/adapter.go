package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/corridors/gameserver/game/engine"
	"github.com/corridors/gameserver/metrics"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("search adapter is closed")
	// ErrTimeout is returned when a simulation run exceeds its deadline.
	ErrTimeout = errors.New("search deadline exceeded")
	// ErrInvalidAction wraps a kernel rejection of a proposed move.
	ErrInvalidAction = errors.New("invalid action")
)

const (
	// batchSize is how many simulations run between cancellation checks.
	batchSize = 100
	// graceWindow is how long a timed-out run may take to notice the
	// cancellation flag before the caller gives up on the partial count.
	graceWindow = time.Second
)

// Adapter wraps one kernel instance behind a thread-safe, cancellable
// interface. The kernel itself is single-threaded; the adapter serialises
// every call through its mutex and runs simulations in bounded batches so a
// cooperative cancellation flag is consulted between batches.
//
// At most one simulation run proceeds at a time. Any operation that starts a
// new run, commits a move, or resets the kernel raises the flag first, so an
// in-flight run stops at the next batch boundary before the kernel is reused.
type Adapter struct {
	mu     sync.Mutex // owns the kernel
	kernel engine.Kernel
	cancel atomic.Bool
	closed atomic.Bool
	log    zerolog.Logger
}

// NewAdapter constructs an adapter owning a fresh kernel for cfg.
func NewAdapter(cfg engine.Config, log zerolog.Logger) *Adapter {
	return &Adapter{kernel: engine.New(cfg), log: log}
}

// RunSimulations performs up to n additional simulations, stopping early on
// cancellation or when ctx's deadline passes. It returns the number actually
// completed. On timeout it waits up to a short grace window for the batch
// loop to stop; if the loop is still wedged after that, the count is reported
// as zero.
func (a *Adapter) RunSimulations(ctx context.Context, n int) (int, error) {
	if a.closed.Load() {
		return 0, ErrClosed
	}
	if n <= 0 {
		return 0, nil
	}

	// Stop any in-flight run; this call owns the kernel next.
	a.cancel.Store(true)

	type result struct {
		completed int
		err       error
	}
	done := make(chan result, 1)
	go func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.cancel.Store(false)
		completed := 0
		var runErr error
		func() {
			defer func() {
				if r := recover(); r != nil {
					runErr = fmt.Errorf("kernel failure: %v", r)
				}
			}()
			for completed < n {
				if a.cancel.Load() || a.closed.Load() || ctx.Err() != nil {
					break
				}
				batch := n - completed
				if batch > batchSize {
					batch = batchSize
				}
				a.kernel.RunSimulations(batch)
				completed += batch
			}
		}()
		metrics.SimulationsTotal.Add(float64(completed))
		done <- result{completed, runErr}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			a.log.Error().Err(r.err).Msg("simulation run failed")
		}
		return r.completed, r.err
	case <-ctx.Done():
		a.cancel.Store(true)
		select {
		case r := <-done:
			return r.completed, ErrTimeout
		case <-time.After(graceWindow):
			return 0, ErrTimeout
		}
	}
}

// EnsureBudget brings the root visit count up to at least target, bounded by
// ctx's deadline, and returns the resulting count.
func (a *Adapter) EnsureBudget(ctx context.Context, target int) (int, error) {
	current, err := a.VisitCount()
	if err != nil {
		return 0, err
	}
	if target <= current {
		return current, nil
	}
	completed, err := a.RunSimulations(ctx, target-current)
	if err != nil {
		return current + completed, err
	}
	return a.VisitCount()
}

// ApplyMove commits a move to the kernel. A running search for the pre-move
// root is cancelled first; its results are meaningless once the move lands.
func (a *Adapter) ApplyMove(action string, flip bool) error {
	if a.closed.Load() {
		return ErrClosed
	}
	a.cancel.Store(true)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed.Load() {
		return ErrClosed
	}
	if err := a.kernel.ApplyMove(action, flip); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	return nil
}

// Reset returns the kernel to the initial position, cancelling any running
// simulation first.
func (a *Adapter) Reset() error {
	if a.closed.Load() {
		return ErrClosed
	}
	a.cancel.Store(true)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed.Load() {
		return ErrClosed
	}
	a.kernel.Reset()
	return nil
}

// BestAction returns the kernel's chosen action with optional epsilon-greedy
// noise.
func (a *Adapter) BestAction(epsilon float64) (string, error) {
	var action string
	err := a.withKernel(func(k engine.Kernel) { action = k.BestAction(epsilon) })
	return action, err
}

// SortedActions returns the root actions ordered by visit count descending.
func (a *Adapter) SortedActions(flip bool) ([]engine.ScoredAction, error) {
	var actions []engine.ScoredAction
	err := a.withKernel(func(k engine.Kernel) { actions = k.SortedActions(flip) })
	return actions, err
}

// LegalActions lists the legal actions at the current root.
func (a *Adapter) LegalActions() ([]string, error) {
	var actions []string
	err := a.withKernel(func(k engine.Kernel) { actions = k.LegalActions() })
	return actions, err
}

// Evaluation returns the root evaluation, with ok=false when none exists yet.
func (a *Adapter) Evaluation() (value float64, ok bool, err error) {
	err = a.withKernel(func(k engine.Kernel) { value, ok = k.Evaluation() })
	return value, ok, err
}

// VisitCount returns total simulations accumulated at the root since the
// last move.
func (a *Adapter) VisitCount() (int, error) {
	var visits int
	err := a.withKernel(func(k engine.Kernel) { visits = k.VisitCount() })
	return visits, err
}

// Render returns the kernel's board display.
func (a *Adapter) Render(flip bool) (string, error) {
	var board string
	err := a.withKernel(func(k engine.Kernel) { board = k.Display(flip) })
	return board, err
}

// IsTerminal reports whether the kernel position is end-of-game.
func (a *Adapter) IsTerminal() (bool, error) {
	var terminal bool
	err := a.withKernel(func(k engine.Kernel) { terminal = k.IsTerminal() })
	return terminal, err
}

// Close cancels outstanding work and releases the kernel. It is idempotent;
// every operation after Close fails with ErrClosed.
func (a *Adapter) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	a.cancel.Store(true)
	// Await cessation of any in-flight run.
	a.mu.Lock()
	defer a.mu.Unlock()
	return nil
}

func (a *Adapter) withKernel(f func(engine.Kernel)) error {
	if a.closed.Load() {
		return ErrClosed
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed.Load() {
		return ErrClosed
	}
	f(a.kernel)
	return nil
}
