package memory

import (
	"context"
	"testing"

	audit "identix/pkg/platform/audit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	require.NoError(t, s.Append(ctx, audit.Event{Subject: "0xa", Action: "credential_issued"}))
	require.NoError(t, s.Append(ctx, audit.Event{Subject: "0xb", Action: "credential_issued"}))
	require.NoError(t, s.Append(ctx, audit.Event{Subject: "0xa", Action: "credential_revoked"}))

	bySubject, err := s.ListBySubject(ctx, "0xa")
	require.NoError(t, err)
	require.Len(t, bySubject, 2)
	assert.Equal(t, "credential_revoked", bySubject[0].Action)

	recent, err := s.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "0xa", recent[0].Subject)
	assert.Equal(t, "0xb", recent[1].Subject)
}
