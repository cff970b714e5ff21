package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_Success(t *testing.T) {
	logger, hook := test.NewNullLogger()
	runner := NewRunner(logger)
	executed := atomic.Bool{}

	runner.Go(context.Background(), time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})

	require.NoError(t, runner.Wait(context.Background()))
	assert.True(t, executed.Load())
	assert.Empty(t, hook.AllEntries())
}

func TestRunner_ErrorIsLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	runner := NewRunner(logger)

	runner.Go(context.Background(), time.Second, "touch", func(ctx context.Context) error {
		return errors.New("write failed")
	})

	require.NoError(t, runner.Wait(context.Background()))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "touch", entry.Data["task"])
	assert.EqualError(t, entry.Data[logrus.ErrorKey].(error), "write failed")
}

func TestRunner_PanicRecovered(t *testing.T) {
	logger, hook := test.NewNullLogger()
	runner := NewRunner(logger)

	runner.Go(context.Background(), time.Second, "panicky", func(ctx context.Context) error {
		panic("boom")
	})

	require.NoError(t, runner.Wait(context.Background()))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "boom", entry.Data["panic"])
}

func TestRunner_Timeout(t *testing.T) {
	runner := NewRunner(nil)
	var ctxErr atomic.Value

	runner.Go(context.Background(), 20*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		ctxErr.Store(ctx.Err())
		return ctx.Err()
	})

	require.NoError(t, runner.Wait(context.Background()))
	assert.ErrorIs(t, ctxErr.Load().(error), context.DeadlineExceeded)
}

func TestRunner_DetachedFromParentCancel(t *testing.T) {
	runner := NewRunner(nil)
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	var sawErr atomic.Bool
	runner.Go(context.WithoutCancel(parent), time.Second, "detached", func(ctx context.Context) error {
		if ctx.Err() != nil {
			sawErr.Store(true)
		}
		return nil
	})

	require.NoError(t, runner.Wait(context.Background()))
	assert.False(t, sawErr.Load())
}

func TestRunner_WaitDeadline(t *testing.T) {
	runner := NewRunner(nil)
	release := make(chan struct{})
	defer close(release)

	runner.Go(context.Background(), time.Minute, "blocked", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, runner.Wait(ctx))
}

func TestSafeGo(t *testing.T) {
	done := make(chan struct{})
	SafeGo(context.Background(), time.Second, "package runner", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SafeGo did not run the task")
	}
}
