package producer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresBrokers(t *testing.T) {
	_, err := New(Config{}, nil)
	require.ErrorContains(t, err, "brokers not configured")
}

func TestProducer_ClosedRejectsProduce(t *testing.T) {
	// The client is created lazily; no broker needs to be reachable.
	p, err := New(DefaultConfig([]string{"127.0.0.1:1"}), nil)
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err = p.Produce(context.Background(), &Message{Topic: "identix.audit", Value: []byte("{}")})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, p.Health(context.Background()), ErrClosed)
}
