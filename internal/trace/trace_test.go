package trace

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledSpansAreNoops(t *testing.T) {
	require.NoError(t, Init(false, nil))
	assert.False(t, Enabled())

	ctx, span := StartSpan(context.Background(), "noop", Fund("000001"))
	Fail(span, errors.New("ignored"))
	span.End()

	_, _, ok := GetTraceFields(ctx)
	assert.False(t, ok)
}

func TestEnabledExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(true, &buf))
	t.Cleanup(func() {
		enabled = false
		tracer = nil
		tracerProvider = nil
	})

	ctx, span := StartSpan(context.Background(), "collector.load", Fund("000001"))
	traceID, spanID, ok := GetTraceFields(ctx)
	require.True(t, ok)
	assert.NotEmpty(t, traceID)
	assert.NotEmpty(t, spanID)
	span.End()

	require.NoError(t, Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "collector.load")
	assert.Contains(t, buf.String(), "000001")
}
