package workpool

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pagescope/readability-server/internal/telemetry"
)

// teardownGrace is how long a replaced runtime gets to acknowledge shutdown
// before it is written off as hung.
const teardownGrace = 5 * time.Second

// Unit is one execution slot. It owns a backing runtime (a dedicated
// goroutine behind request/reply channels) and at most one PendingCall at a
// time. The coordinator guarantees a unit is never submitted to while busy;
// the unit itself guards its call slot against stale replies and restarts.
type Unit struct {
	fn     TaskFunc
	logger *zap.Logger

	mu      sync.Mutex
	rt      *unitRuntime
	pending *PendingCall
	timer   *time.Timer
	lastID  uint64
}

type taskRequest struct {
	id   uint64
	args []any
}

type taskReply struct {
	id    uint64
	value any
	err   error
}

// unitRuntime is the isolated execution context. Requests is buffered so a
// submit to an idle unit never blocks; stop abandons the runtime; done
// closes when the loop goroutine actually exits.
type unitRuntime struct {
	requests chan taskRequest
	stop     chan struct{}
	done     chan struct{}
}

func newUnit(fn TaskFunc, logger *zap.Logger) *Unit {
	u := &Unit{
		fn:     fn,
		logger: logger,
	}
	u.rt = u.spawnRuntime()
	return u
}

func (u *Unit) spawnRuntime() *unitRuntime {
	rt := &unitRuntime{
		requests: make(chan taskRequest, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go func() {
		defer close(rt.done)
		for {
			select {
			case <-rt.stop:
				return
			case req := <-rt.requests:
				value, err := runTask(u.fn, req.args)
				u.handleReply(rt, taskReply{id: req.id, value: value, err: err})
			}
		}
	}()
	return rt
}

// runTask executes the task function, converting a panic into a TaskError
// carrying the panic message and stack trace.
func runTask(fn TaskFunc, args []any) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &TaskError{
				Message: fmt.Sprint(rec),
				Stack:   string(debug.Stack()),
			}
		}
	}()
	return fn(args...)
}

// Submit hands a task to the backing runtime and returns its PendingCall.
// Precondition: the unit is idle; the coordinator enforces this by never
// sharing a unit between two callers.
func (u *Unit) Submit(task Task) *PendingCall {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.lastID++
	call := newPendingCall(u.lastID)
	if u.pending != nil {
		// One task per unit is the coordinator's invariant. Refuse the new
		// call instead of corrupting the in-flight one.
		call.resolve(nil, fmt.Errorf("unit busy: call %d rejected", call.id))
		return call
	}
	u.pending = call
	if task.Timeout > 0 {
		id := call.id
		u.timer = time.AfterFunc(task.Timeout, func() { u.expire(id) })
	}

	select {
	case u.rt.requests <- taskRequest{id: call.id, args: task.Args}:
	default:
		// The runtime already holds a request, so the one-task-per-unit
		// invariant was violated upstream. Fail this call instead of
		// corrupting the in-flight one.
		u.pending = nil
		u.stopTimerLocked()
		call.resolve(nil, fmt.Errorf("unit busy: call %d rejected", call.id))
	}
	return call
}

// handleReply resolves the outstanding call if the reply matches it.
// Replies from a replaced runtime, or replies with no outstanding call,
// are logged and dropped.
func (u *Unit) handleReply(rt *unitRuntime, rep taskReply) {
	u.mu.Lock()
	if rt != u.rt || u.pending == nil || u.pending.id != rep.id {
		u.mu.Unlock()
		u.logger.Warn("discarding reply with no matching call",
			zap.Uint64("call_id", rep.id),
			zap.Error(rep.err),
		)
		return
	}
	call := u.pending
	u.pending = nil
	u.stopTimerLocked()
	u.mu.Unlock()

	call.resolve(rep.value, rep.err)
}

func (u *Unit) expire(id uint64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.pending == nil || u.pending.id != id {
		// The reply won the race; nothing to recover.
		return
	}
	u.logger.Warn("task deadline exceeded, restarting unit", zap.Uint64("call_id", id))
	telemetry.ObserveUnitRestart()
	u.restartLocked(ErrTimedOut)
}

// Restart tears down the backing runtime and replaces it in place. Any
// outstanding call is resolved with cause (ErrTerminated when nil) so a
// caller is never left waiting on an interrupted unit. The old runtime is
// shut down without blocking the unit's availability.
func (u *Unit) Restart(cause error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.restartLocked(cause)
}

func (u *Unit) restartLocked(cause error) {
	if cause == nil {
		cause = ErrTerminated
	}
	old := u.rt
	if u.pending != nil {
		u.pending.resolve(nil, cause)
		u.pending = nil
	}
	u.stopTimerLocked()
	u.rt = u.spawnRuntime()
	go u.teardown(old)
}

// teardown is fire-and-forget: the replacement runtime is already live, so
// a hung predecessor costs a goroutine until it unwinds, nothing more.
func (u *Unit) teardown(rt *unitRuntime) {
	close(rt.stop)
	select {
	case <-rt.done:
	case <-time.After(teardownGrace):
		u.logger.Warn("old runtime did not exit within grace period, abandoning it")
	}
}

// shutdown stops the current runtime for process exit. Not part of the
// task lifecycle; units otherwise live for the process lifetime.
func (u *Unit) shutdown() {
	u.mu.Lock()
	rt := u.rt
	u.mu.Unlock()
	close(rt.stop)
}

func (u *Unit) stopTimerLocked() {
	if u.timer != nil {
		u.timer.Stop()
		u.timer = nil
	}
}
