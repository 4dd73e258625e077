package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"identix/pkg/requestcontext"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEmitter struct {
	events []Event
	err    error
}

func (r *recordingEmitter) Emit(_ context.Context, event Event) error {
	r.events = append(r.events, event)
	return r.err
}

func TestLogger_EmitsStructuredEvent(t *testing.T) {
	var buf bytes.Buffer
	emitter := &recordingEmitter{}
	l := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)), emitter)
	ctx := requestcontext.WithRequestID(context.Background(), "req-1")

	l.Log(ctx, EventCredentialIssued,
		"identifier_hash", "0xabc",
		"issuer_id", "registrar-01",
		"token", "IDX-A7B2C9",
	)

	require.Len(t, emitter.events, 1)
	ev := emitter.events[0]
	assert.Equal(t, "credential_issued", ev.Action)
	assert.Equal(t, CategoryCompliance, ev.Category)
	assert.Equal(t, "0xabc", ev.Subject)
	assert.Equal(t, "registrar-01", ev.IssuerID)
	assert.Equal(t, "IDX-A7B2C9", ev.Token)
	assert.Equal(t, "req-1", ev.RequestID)
	assert.Contains(t, buf.String(), `"log_type":"audit"`)
}

func TestLogger_ReportsEmitFailure(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)), &recordingEmitter{err: errors.New("buffer full")})

	l.Log(context.Background(), EventCredentialRevoked, "token", "IDX-A7B2C9")

	assert.Contains(t, buf.String(), "failed to emit audit event")
}

func TestLogger_NilIsNoop(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Log(context.Background(), EventCredentialVerified)
	})
}
