package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/roster/pkg/observability"
)

func TestResourcesReleaseInReverse(t *testing.T) {
	logger, hook := test.NewNullLogger()
	owned := newResources(logger)

	var order []string
	closer := func(name string, err error) observability.ShutdownFunc {
		return func(ctx context.Context) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			order = append(order, name)
			return err
		}
	}
	owned.add("opentelemetry", closer("opentelemetry", nil))
	owned.add("database", closer("database", errors.New("already closed")))
	owned.add("redis", closer("redis", nil))

	err := owned.release(time.Second)
	assert.ErrorContains(t, err, "database: already closed")
	assert.Equal(t, []string{"redis", "database", "opentelemetry"}, order)
	assert.Equal(t, "failed to release resource", hook.LastEntry().Message)

	assert.NoError(t, owned.release(time.Second))
	assert.Len(t, order, 3)
}

func TestResourcesHandOff(t *testing.T) {
	logger, _ := test.NewNullLogger()
	owned := newResources(logger)

	closed := 0
	owned.add("opentelemetry", func(context.Context) error {
		closed++
		return nil
	})

	sm := observability.NewShutdownManager(logger, nil, time.Second)
	owned.handOff(sm)

	assert.NoError(t, owned.release(time.Second))
	assert.Equal(t, 0, closed)

	assert.NoError(t, sm.Shutdown())
	assert.Equal(t, 1, closed)
}
