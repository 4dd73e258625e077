//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"identix/internal/platform/kafka/producer"
	audit "identix/pkg/platform/audit"
	"identix/pkg/platform/audit/store/memory"
	"identix/pkg/testutil/containers"
)

func TestStore_PublishesToBroker(t *testing.T) {
	ctx := context.Background()
	kc := containers.GetManager().GetKafka(t)
	const topic = "identix.audit.it"
	require.NoError(t, kc.CreateTopic(ctx, topic, 1, 1))

	p, err := producer.New(producer.DefaultConfig([]string{kc.Brokers}), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	require.NoError(t, p.Health(ctx))

	local := memory.NewInMemoryStore()
	s := New(local, p, topic)
	event := audit.Event{
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Category:  audit.CategorySecurity,
		Action:    string(audit.EventVerificationRejected),
		Subject:   "0x4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45",
		Outcome:   "ledger_mismatch",
		Reason:    "no matching ledger entry",
	}
	require.NoError(t, s.Append(ctx, event))

	rec, err := kc.ConsumeOne(ctx, "identix-it", topic, 30*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == event.Subject
	})
	require.NoError(t, err)
	require.NotNil(t, rec, "audit event never reached the broker")

	var got message
	require.NoError(t, json.Unmarshal(rec.Value, &got))
	assert.Equal(t, event.Action, got.Action)
	assert.Equal(t, "ledger_mismatch", got.Outcome)

	stored, err := local.ListBySubject(ctx, event.Subject)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}
