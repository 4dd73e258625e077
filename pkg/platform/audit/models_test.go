package audit

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type AuditEventSuite struct {
	suite.Suite
}

func TestAuditEventSuite(t *testing.T) {
	suite.Run(t, new(AuditEventSuite))
}

func (s *AuditEventSuite) TestCategory_ComplianceEvents() {
	for _, event := range []AuditEvent{EventCredentialIssued, EventCredentialRevoked} {
		s.Run(string(event), func() {
			s.Equal(CategoryCompliance, event.Category())
		})
	}
}

func (s *AuditEventSuite) TestCategory_SecurityEvents() {
	for _, event := range []AuditEvent{EventVerificationRejected, EventIssuanceFailed} {
		s.Run(string(event), func() {
			s.Equal(CategorySecurity, event.Category())
		})
	}
}

func (s *AuditEventSuite) TestCategory_UnknownFallsBackToOperations() {
	s.Equal(CategoryOperations, AuditEvent("something_new").Category())
	s.Equal(CategoryOperations, EventOrphanDetected.Category())
}
