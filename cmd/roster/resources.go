package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/roster/pkg/observability"
)

type namedCloser struct {
	name string
	fn   observability.ShutdownFunc
}

// resources tracks what startup has opened so far. Until handOff passes them
// to the shutdown manager, release closes them in reverse order.
type resources struct {
	logger  logrus.FieldLogger
	closers []namedCloser
}

func newResources(logger logrus.FieldLogger) *resources {
	return &resources{logger: logger}
}

func (r *resources) add(name string, fn observability.ShutdownFunc) {
	r.closers = append(r.closers, namedCloser{name: name, fn: fn})
}

// release closes everything still owned, newest first
func (r *resources) release(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.fn(ctx); err != nil {
			r.logger.WithError(err).WithField("step", c.name).Error("failed to release resource")
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// handOff registers everything with sm; release becomes a no-op
func (r *resources) handOff(sm *observability.ShutdownManager) {
	for _, c := range r.closers {
		sm.RegisterShutdownFunc(c.name, c.fn)
	}
	r.closers = nil
}
