package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSpan_WithoutTracer(t *testing.T) {
	SetTracer(nil)
	ctx, span := StartSpan(context.Background(), "test")
	defer span.End()

	assert.Nil(t, GetActiveSpan(ctx))
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetTraceParent(ctx))
}

func TestSetup(t *testing.T) {
	ctx := context.Background()

	t.Run("spans carry trace context", func(t *testing.T) {
		shutdown, err := Setup(ctx, Config{ServiceName: "fern-test", Exporter: "none", SampleRatio: 1})
		require.NoError(t, err)
		defer func() {
			require.NoError(t, shutdown(ctx))
			SetTracer(nil)
		}()

		spanCtx, span := StartSpan(ctx, "test")
		defer span.End()

		traceID := GetTraceID(spanCtx)
		require.Len(t, traceID, 32)
		assert.Contains(t, GetTraceParent(spanCtx), traceID)
	})

	t.Run("unknown exporter", func(t *testing.T) {
		_, err := Setup(ctx, Config{Exporter: "zipkin"})
		assert.Error(t, err)
	})

	t.Run("unknown protocol", func(t *testing.T) {
		_, err := NewOTLPExporter(ctx, Config{OTLPProtocol: "carrier-pigeon"})
		assert.Error(t, err)
	})
}
