package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, "veridex-kernel", config.ServiceName)
	require.Equal(t, "localhost:4317", config.OTLPEndpoint)
	require.Equal(t, 1.0, config.SampleRate)
	require.True(t, config.Enabled)
	require.False(t, config.Insecure)
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)

	// Accessors and recorders are safe without initialized providers.
	require.NotNil(t, p.Tracer())
	require.NotNil(t, p.Meter())

	ctx := context.Background()
	p.RecordDecision(ctx, "APPROVED", time.Millisecond)
	p.RecordAppend(ctx, "POLICY_DECISION")
	p.RecordSync(ctx, "SYNCED", 3)
	p.RecordSync(ctx, "FAILED", 0)

	require.NoError(t, p.Shutdown(ctx))
}

func TestStartSpanDisabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	ctx, span := p.StartSpan(context.Background(), "evaluate")
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	span.End()
}
