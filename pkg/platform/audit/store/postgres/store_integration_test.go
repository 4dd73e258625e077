//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	audit "identix/pkg/platform/audit"
	"identix/pkg/testutil/containers"
)

type StoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Store
}

func TestStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = New(s.pg.DB)
}

func (s *StoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), containers.CredentialTables...))
}

func (s *StoreSuite) TestListBySubjectNewestFirst() {
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	subject := "0x4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45"

	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: base,
		Category:  audit.EventCredentialIssued.Category(),
		Action:    string(audit.EventCredentialIssued),
		Subject:   subject,
		IssuerID:  "registrar@uni.example",
		Token:     "IDX-A7B2C9",
		RequestID: "req-1",
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: base.Add(time.Hour),
		Category:  audit.EventCredentialRevoked.Category(),
		Action:    string(audit.EventCredentialRevoked),
		Subject:   subject,
		IssuerID:  "registrar@uni.example",
		Token:     "IDX-A7B2C9",
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: base.Add(2 * time.Hour),
		Category:  audit.CategorySecurity,
		Action:    string(audit.EventVerificationRejected),
		Subject:   "0xother",
		Outcome:   "identifier_mismatch",
	}))

	events, err := s.store.ListBySubject(ctx, subject)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventCredentialRevoked), events[0].Action)
	s.Equal(audit.CategoryCompliance, events[1].Category)
	s.Equal("req-1", events[1].RequestID)
	s.True(base.Equal(events[1].Timestamp))
}

func (s *StoreSuite) TestListRecentHonoursLimit() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)
	for i := range 3 {
		s.Require().NoError(s.store.Append(ctx, audit.Event{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Category:  audit.CategoryOperations,
			Action:    string(audit.EventOrphanDetected),
			Subject:   "0xabc",
		}))
	}

	events, err := s.store.ListRecent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.True(events[0].Timestamp.After(events[1].Timestamp))
}
