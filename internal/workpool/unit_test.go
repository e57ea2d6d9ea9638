package workpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUnitSubmitResolvesOnce(t *testing.T) {
	t.Parallel()

	u := newUnit(echoTask, zap.NewNop())
	defer u.shutdown()

	call := u.Submit(Task{Args: []any{"x"}})
	value, err := call.Wait()
	require.NoError(t, err)
	require.Equal(t, "x", value)

	// Wait is idempotent: the settled outcome never changes.
	again, err := call.Wait()
	require.NoError(t, err)
	require.Equal(t, "x", again)
}

func TestUnitRestartResolvesPendingWithCause(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	blocker := func(args ...any) (any, error) {
		<-gate
		return "late", nil
	}
	u := newUnit(blocker, zap.NewNop())
	defer u.shutdown()

	call := u.Submit(Task{})
	go u.Restart(nil)

	_, err := call.Wait()
	require.ErrorIs(t, err, ErrTerminated)

	// The abandoned runtime's eventual reply must not leak into the next
	// call's slot.
	close(gate)
	next := u.Submit(Task{Args: []any{"fresh"}})
	value, err := next.Wait()
	require.NoError(t, err)
	require.Equal(t, "fresh", value)
}

func TestUnitTimeoutLosesRaceToReply(t *testing.T) {
	t.Parallel()

	quick := func(args ...any) (any, error) {
		return "fast", nil
	}
	u := newUnit(quick, zap.NewNop())
	defer u.shutdown()

	// Generous deadline: the reply should always win, and the timer must
	// not fire against a later call reusing the slot.
	call := u.Submit(Task{Timeout: time.Hour})
	value, err := call.Wait()
	require.NoError(t, err)
	require.Equal(t, "fast", value)

	for i := 0; i < 10; i++ {
		c := u.Submit(Task{Timeout: time.Hour})
		v, waitErr := c.Wait()
		require.NoError(t, waitErr)
		require.Equal(t, "fast", v)
	}
}

func TestUnitExpiredCallDoesNotResolveTwice(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	slow := func(args ...any) (any, error) {
		<-release
		return "late", nil
	}
	u := newUnit(slow, zap.NewNop())
	defer u.shutdown()

	call := u.Submit(Task{Timeout: 10 * time.Millisecond})
	_, err := call.Wait()
	require.ErrorIs(t, err, ErrTimedOut)

	// Let the abandoned task finish; its reply is stale and discarded, so
	// the settled outcome holds.
	close(release)
	time.Sleep(50 * time.Millisecond)
	_, err = call.Wait()
	require.ErrorIs(t, err, ErrTimedOut)
}

func TestUnitRejectsSubmitWhileBusy(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	blocker := func(args ...any) (any, error) {
		<-gate
		return nil, nil
	}
	u := newUnit(blocker, zap.NewNop())
	defer u.shutdown()

	first := u.Submit(Task{})
	second := u.Submit(Task{})

	// The second submit is refused outright; the in-flight call is intact.
	_, err := second.Wait()
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTimedOut)

	close(gate)
	_, err = first.Wait()
	require.NoError(t, err)
}
