package observability

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestShutdownRunsRegisteredFuncs(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sm := NewShutdownManager(logger, &http.Server{}, time.Second)

	var calls int32
	sm.RegisterShutdownFunc("first", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	sm.RegisterShutdownFunc("second", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	assert.NoError(t, sm.Shutdown())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestShutdownCollectsErrors(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sm := NewShutdownManager(logger, nil, time.Second)

	sm.RegisterShutdownFunc("database", func(ctx context.Context) error {
		return errors.New("close failed")
	})

	err := sm.Shutdown()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database: close failed")
	assert.Equal(t, "shutdown step failed", hook.LastEntry().Message)
}

func TestShutdownTimeout(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sm := NewShutdownManager(logger, nil, 20*time.Millisecond)

	release := make(chan struct{})
	defer close(release)
	sm.RegisterShutdownFunc("stuck", func(ctx context.Context) error {
		<-release
		return nil
	})

	err := sm.Shutdown()
	assert.EqualError(t, err, "shutdown timeout reached")
}

func TestNewShutdownManagerDefaultTimeout(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sm := NewShutdownManager(logger, nil, 0)
	assert.Equal(t, 30*time.Second, sm.shutdownTimeout)
}
