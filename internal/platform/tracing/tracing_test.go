package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled yields a usable no-op tracer", func(t *testing.T) {
		p, err := NewProvider(ctx, Config{})
		require.NoError(t, err)
		_, span := p.Tracer().Start(ctx, "op")
		assert.False(t, span.SpanContext().IsSampled())
		span.End()
		assert.NoError(t, p.Shutdown(ctx))
	})

	t.Run("enabled without exporter still samples", func(t *testing.T) {
		p, err := NewProvider(ctx, Config{Enabled: true, Exporter: "none"})
		require.NoError(t, err)
		_, span := p.Tracer().Start(ctx, "op")
		assert.True(t, span.SpanContext().IsSampled())
		span.End()
		assert.NoError(t, p.Shutdown(ctx))
	})

	t.Run("unknown exporter is rejected", func(t *testing.T) {
		_, err := NewProvider(ctx, Config{Enabled: true, Exporter: "zipkin"})
		assert.Error(t, err)
	})
}
