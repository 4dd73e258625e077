package tracer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNoopTracer_Start(t *testing.T) {
	tr := NewNoop()
	ctx := context.Background()

	newCtx, span := tr.Start(ctx, SpanVerify, String(AttrIdentifierHash, "0xabc"))

	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)
	span.SetAttributes(String(AttrOutcome, "valid"))
	span.AddEvent(EventLedgerMatch, Int64(AttrLedgerIndex, 3))
	span.End(errors.New("ignored"))
}

func TestOTelTracer_WrapsInjectedTracer(t *testing.T) {
	tr := NewOTel(WithOTelTracer(noop.NewTracerProvider().Tracer("test")))

	ctx, span := tr.Start(context.Background(), SpanIssue, String(AttrState, "uploading"))
	require.NotNil(t, ctx)
	span.AddEvent(EventStateChanged, String(AttrState, "hashing"))
	span.End(errors.New("ledger rejected"))
}

func TestToOTelAttributes(t *testing.T) {
	got := toOTelAttributes([]Attribute{
		String("s", "v"),
		Bool("b", true),
		Int64("i", 7),
		{Key: "u", Value: uint64(9)},
		Duration("d", 150*time.Millisecond),
		{Key: "skipped", Value: struct{}{}},
	})

	assert.Equal(t, []attribute.KeyValue{
		attribute.String("s", "v"),
		attribute.Bool("b", true),
		attribute.Int64("i", 7),
		attribute.Int64("u", 9),
		attribute.Int64("d", 150),
	}, got)
	assert.Nil(t, toOTelAttributes(nil))
}
