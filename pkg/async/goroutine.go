package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Runner executes fire-and-forget tasks with panic recovery, a timeout and
// error logging. Wait lets shutdown drain tasks still in flight.
type Runner struct {
	logger logrus.FieldLogger
	wg     sync.WaitGroup
}

// NewRunner creates a Runner that logs task failures to logger
func NewRunner(logger logrus.FieldLogger) *Runner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Runner{logger: logger.WithField("component", "async")}
}

// Go runs fn in a goroutine under a context derived from parentCtx with the
// given timeout. Errors and panics are logged, never returned.
//
// Example:
//
//	runner.Go(context.WithoutCancel(r.Context()), 5*time.Second, "touch api key", func(ctx context.Context) error {
//	    return repo.TouchLastUsed(ctx, id, time.Now())
//	})
func (r *Runner) Go(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if rec := recover(); rec != nil {
				r.logger.WithFields(logrus.Fields{
					"task":  taskName,
					"panic": fmt.Sprint(rec),
					"stack": string(debug.Stack()),
				}).Error("panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			r.logger.WithError(err).WithField("task", taskName).Warn("background task failed")
		}
	}()
}

// Wait blocks until every started task has returned or ctx is done
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background tasks still running: %w", ctx.Err())
	}
}

var defaultRunner = NewRunner(nil)

// SafeGo runs fn on the package-level runner, which logs to the standard logrus logger
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	defaultRunner.Go(parentCtx, timeout, taskName, fn)
}
