package workpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pagescope/readability-server/internal/telemetry"
)

// Options controls one Send call.
type Options struct {
	// Timeout bounds task execution. Zero falls back to the pool default;
	// a negative value disables the deadline entirely.
	Timeout time.Duration
}

// Pool arbitrates access to a fixed set of execution units. Callers see a
// single Send operation; the pool guarantees at most one task in flight per
// unit and serves the longest-waiting caller first when a unit frees up.
type Pool struct {
	defaultTimeout time.Duration
	logger         *zap.Logger
	units          []*Unit

	mu      sync.Mutex
	free    []*Unit
	waiters []chan *Unit
}

// New creates size units eagerly, all running fn. Pool size is fixed for
// the process lifetime.
func New(fn TaskFunc, size int, defaultTimeout time.Duration, logger *zap.Logger) (*Pool, error) {
	if fn == nil {
		return nil, fmt.Errorf("task function is required")
	}
	if size < 1 {
		return nil, fmt.Errorf("pool size must be >= 1, got %d", size)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		defaultTimeout: defaultTimeout,
		logger:         logger,
		units:          make([]*Unit, 0, size),
		free:           make([]*Unit, 0, size),
	}
	for i := 0; i < size; i++ {
		u := newUnit(fn, logger.With(zap.Int("unit", i)))
		p.units = append(p.units, u)
		p.free = append(p.free, u)
	}
	return p, nil
}

// Size reports the fixed unit count.
func (p *Pool) Size() int {
	return len(p.units)
}

// Send runs one task on the pool: acquire a unit (waiting FIFO behind
// earlier callers if none is free), submit, wait for the call to settle,
// and release the unit on every exit path. The context bounds only the
// wait for a free unit; once submitted, the task's own timeout is the
// recovery mechanism.
func (p *Pool) Send(ctx context.Context, opts Options, args ...any) (any, error) {
	start := time.Now()
	unit, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	telemetry.ObservePoolWait(time.Since(start))
	telemetry.IncBusyUnits()
	defer func() {
		telemetry.DecBusyUnits()
		p.release(unit)
	}()

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = p.defaultTimeout
	}
	if timeout < 0 {
		timeout = 0
	}
	call := unit.Submit(Task{Args: args, Timeout: timeout})
	return call.Wait()
}

// acquire returns an idle unit immediately when one is free; otherwise the
// caller joins the tail of the waiter queue and blocks until release hands
// it a unit directly.
func (p *Pool) acquire(ctx context.Context) (*Unit, error) {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		u := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return u, nil
	}
	w := make(chan *Unit, 1)
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	select {
	case u := <-w:
		return u, nil
	case <-ctx.Done():
		p.mu.Lock()
		for i, q := range p.waiters {
			if q == w {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				p.mu.Unlock()
				return nil, fmt.Errorf("acquire unit: %w", ctx.Err())
			}
		}
		p.mu.Unlock()
		// A release already handed this waiter a unit; put it back so
		// the slot is not leaked.
		p.release(<-w)
		return nil, fmt.Errorf("acquire unit: %w", ctx.Err())
	}
}

// release hands the unit straight to the head waiter when one is queued,
// bypassing the free set so FIFO order holds and no other caller can steal
// the slot. Otherwise the unit rejoins the free set.
func (p *Pool) release(u *Unit) {
	p.mu.Lock()
	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		w <- u
		return
	}
	p.free = append(p.free, u)
	p.mu.Unlock()
}

// Close stops every unit's runtime for process shutdown. In-flight tasks
// are not interrupted; callers should stop sending first.
func (p *Pool) Close() {
	for _, u := range p.units {
		u.shutdown()
	}
}
