package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merchant-onboarding/internal/common/config"
)

func TestObservability_RecordersTolerateNil(t *testing.T) {
	var o *Observability
	ctx := context.Background()

	assert.NotPanics(t, func() {
		o.RecordJobProcessed(ctx, "process-document", "success")
		o.RecordJobDuration(ctx, "process-document", time.Second, "success")
		o.RecordRequest(ctx, "/api/v1/test", 200, time.Millisecond)
		o.RecordDecision(ctx, "APPROVED", "LOW")
		o.Shutdown()
	})
}

func TestObservability_New(t *testing.T) {
	o := New("merchant-onboarding-test")
	defer o.Shutdown()

	ctx := context.Background()
	assert.NotPanics(t, func() {
		o.RecordJobProcessed(ctx, "assess-merchant-risk", "success")
		o.RecordDecision(ctx, "DENIED", "HIGH")
	})
}

func TestNewTracing_DisabledStillCreatesSpans(t *testing.T) {
	tr, err := NewTracing("merchant-onboarding-test", "test", config.TracingConfig{SampleRatio: 1})
	require.NoError(t, err)
	defer tr.Shutdown()

	_, span := Tracer("test").Start(context.Background(), "unit")
	defer span.End()

	assert.True(t, span.SpanContext().IsValid())
}
