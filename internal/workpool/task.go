// Package workpool isolates CPU-bound extraction work on a fixed set of
// independently restartable execution units. Each unit runs one task at a
// time on its own backing runtime; a task that misses its deadline is
// abandoned and the unit's runtime is replaced so the slot stays usable.
package workpool

import (
	"errors"
	"sync"
	"time"
)

// TaskFunc is the synchronous function executed inside a unit's runtime.
// It must not retain the argument slice across calls.
type TaskFunc func(args ...any) (any, error)

// Task is one unit of work: an opaque argument list plus an optional
// execution deadline. A zero Timeout means the task may run forever.
type Task struct {
	Args    []any
	Timeout time.Duration
}

// Sentinel failures produced by the pool itself. Task-level errors are
// passed through unchanged.
var (
	// ErrTimedOut resolves a call whose task missed its deadline. The
	// unit's runtime is replaced as a side effect.
	ErrTimedOut = errors.New("worker timed out")

	// ErrTerminated resolves a call interrupted by an explicit restart.
	ErrTerminated = errors.New("worker terminated")
)

// TaskError carries the message and diagnostic trace of a task that
// panicked inside its runtime.
type TaskError struct {
	Message string
	Stack   string
}

func (e *TaskError) Error() string {
	return e.Message
}

// PendingCall tracks one in-flight task. It is resolved exactly once,
// either with the task's result or with a failure.
type PendingCall struct {
	id    uint64
	done  chan struct{}
	value any
	err   error
	once  sync.Once
}

func newPendingCall(id uint64) *PendingCall {
	return &PendingCall{id: id, done: make(chan struct{})}
}

func (c *PendingCall) resolve(value any, err error) {
	c.once.Do(func() {
		c.value = value
		c.err = err
		close(c.done)
	})
}

// Wait blocks until the call settles and returns its outcome. Every call
// eventually settles: the runtime replies, the deadline fires, or the unit
// is restarted.
func (c *PendingCall) Wait() (any, error) {
	<-c.done
	return c.value, c.err
}
