package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestNewLogger(t *testing.T) {
	t.Run("json output", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger("debug", FormatJSON, &buf)
		require.NoError(t, err)
		assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

		logger.WithField("member_id", 7).Info("session created")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "session created", entry["msg"])
		assert.Equal(t, float64(7), entry["member_id"])
	})

	t.Run("text output", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger("INFO", FormatText, &buf)
		require.NoError(t, err)

		logger.Debug("hidden")
		logger.Info("visible")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "visible")
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := NewLogger("loud", FormatText, nil)
		assert.Error(t, err)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := NewLogger("info", "xml", nil)
		assert.Error(t, err)
	})
}

func TestWithTraceContext(t *testing.T) {
	logger, hook := test.NewNullLogger()

	WithTraceContext(context.Background(), logger).Info("no span")
	require.Len(t, hook.Entries, 1)
	assert.NotContains(t, hook.LastEntry().Data, "trace_id")

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	WithTraceContext(ctx, logger).Info("with span")
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", hook.LastEntry().Data["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", hook.LastEntry().Data["span_id"])
}
