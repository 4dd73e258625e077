package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"identix/internal/credential/digest"
	"identix/internal/credential/ledger"
	"identix/internal/credential/models"
	"identix/internal/credential/token"
	dErrors "identix/pkg/domain-errors"
	"identix/pkg/platform/audit"
	"identix/pkg/platform/circuit"
)

func (s *CredentialServiceSuite) TestVerifyRoundTrip() {
	rec := s.issue("CS2024001", "%PDF-1.7 diploma")

	res := s.verify("CS2024001", rec.Token)
	s.Equal(models.OutcomeValid, res.Outcome)
	s.True(res.Valid())
	s.Require().NotNil(res.Metadata)
	s.Equal(rec.Token, res.Metadata.Token)
	s.Require().NotNil(res.MatchedIndex)
	s.Equal(rec.SequenceIndex, *res.MatchedIndex)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.VerificationsTotal.WithLabelValues(string(models.OutcomeValid))))
	s.Equal(1, s.auditor.count(audit.EventCredentialVerified))
}

func (s *CredentialServiceSuite) TestVerifyNormalisesInput() {
	rec := s.issue("CS2024001", "diploma")

	s.Equal(models.OutcomeValid, s.verify(" CS2024001\t", rec.Token).Outcome, "surrounding white space is ignored")
	s.Equal(models.OutcomeValid, s.verify("CS2024001", token.Token(" "+string(rec.Token)+" ")).Outcome)
	s.Equal(models.OutcomeIdentifierMismatch, s.verify("cs2024001", rec.Token).Outcome, "identifiers are case sensitive")
}

func (s *CredentialServiceSuite) TestVerifyTamperDetection() {
	s.Run("altered metadata fingerprint", func() {
		s.SetupTest()
		rec := s.issue("CS2024001", "diploma")
		s.store.tamperLookup = true

		res := s.verify("CS2024001", rec.Token)
		s.Equal(models.OutcomeLedgerMismatch, res.Outcome)
		s.False(res.Inconclusive())
	})

	s.Run("altered ledger value", func() {
		s.SetupTest()
		rec := s.issue("CS2024001", "diploma")
		s.Require().True(s.backend.Tamper(rec.IdentifierHash, rec.SequenceIndex, digest.Fingerprint([]byte("forged"))))

		s.Equal(models.OutcomeLedgerMismatch, s.verify("CS2024001", rec.Token).Outcome)
		s.Equal(1, s.auditor.count(audit.EventVerificationRejected))
	})
}

func (s *CredentialServiceSuite) TestVerifyIdentifierMismatch() {
	rec := s.issue("CS2024001", "diploma")
	s.issue("CS2024002", "diploma")

	res := s.verify("CS2024002", rec.Token)
	s.Equal(models.OutcomeIdentifierMismatch, res.Outcome)
	s.Nil(res.Metadata, "metadata of another holder is not disclosed")
}

func (s *CredentialServiceSuite) TestVerifyUnknownToken() {
	s.issue("CS2024001", "diploma")

	for _, raw := range []string{"IDX-ZZZZZZ", "IDX-0000", "", "not a token"} {
		res, err := s.verifier.Verify(s.ctx, "CS2024001", raw)
		s.Require().NoError(err)
		s.Equal(models.OutcomeTokenNotFound, res.Outcome, raw)
	}
}

func (s *CredentialServiceSuite) TestVerifyBlankIdentifier() {
	_, err := s.verifier.Verify(s.ctx, "   ", "IDX-ZZZZZZ")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// seedBeyondBound stores metadata whose only ledger match sits at index bound.
func (s *CredentialServiceSuite) seedBeyondBound(bound int) token.Token {
	identifier := "CS2024099"
	idHash := digest.MustIdentifierHash(identifier)
	fp := digest.Fingerprint([]byte("late diploma"))
	s.backend.Seed(idHash, uint64(bound), fp)

	tok := token.Token("IDX-LATE22")
	s.Require().NoError(s.memStore.Put(s.ctx, &models.CredentialMetadata{
		ID:                  uuid.New(),
		Token:               tok,
		StudentIdentifier:   identifier,
		IdentifierHash:      idHash,
		DocumentFingerprint: fp,
		SequenceIndex:       uint64(bound),
		LedgerReference:     ledger.Reference(idHash, uint64(bound)),
		DocumentLocation:    "mem://late",
		IssuerID:            "registrar-01",
		IssuedAt:            time.Now(),
		Status:              models.StatusValid,
	}))
	return tok
}

func (s *CredentialServiceSuite) TestVerifyScanBound() {
	s.Run("default bound", func() {
		s.SetupTest()
		tok := s.seedBeyondBound(ledger.DefaultMaxScan)
		s.Equal(models.OutcomeLedgerMismatch, s.verify("CS2024099", tok).Outcome)
	})

	s.Run("configured bound", func() {
		s.SetupTest()
		s.build(ledger.WithMaxScan(5))
		tok := s.seedBeyondBound(5)
		s.Equal(models.OutcomeLedgerMismatch, s.verify("CS2024099", tok).Outcome)
	})

	s.Run("last index inside the bound still matches", func() {
		s.SetupTest()
		s.build(ledger.WithMaxScan(6))
		tok := s.seedBeyondBound(5)
		s.Equal(models.OutcomeValid, s.verify("CS2024099", tok).Outcome)
	})
}

func (s *CredentialServiceSuite) TestVerifyTransportErrors() {
	s.Run("ledger failure mid-scan is inconclusive", func() {
		s.SetupTest()
		tok := s.seedBeyondBound(4)
		s.backend.failIndices[2] = true

		res := s.verify("CS2024099", tok)
		s.Equal(models.OutcomeTransportError, res.Outcome)
		s.True(res.Inconclusive())
		s.Require().Error(res.Err)
		s.True(dErrors.HasCode(res.Err, dErrors.CodeLedgerRead))
		s.Zero(s.auditor.count(audit.EventVerificationRejected), "inconclusive checks are not rejections")
	})

	s.Run("metadata store failure is inconclusive", func() {
		s.SetupTest()
		rec := s.issue("CS2024001", "diploma")
		s.store.findErr = errBackendDown

		res := s.verify("CS2024001", rec.Token)
		s.Equal(models.OutcomeTransportError, res.Outcome)
		s.ErrorIs(res.Err, errBackendDown)
	})

	s.Run("open circuit is inconclusive", func() {
		s.SetupTest()
		s.build(ledger.WithBreaker(circuit.New("ledger", circuit.WithFailureThreshold(1), circuit.WithCooldown(time.Hour))))
		rec := s.issue("CS2024001", "diploma")
		s.backend.failAll = true
		s.Equal(models.OutcomeTransportError, s.verify("CS2024001", rec.Token).Outcome)

		s.backend.failAll = false
		s.Equal(models.OutcomeTransportError, s.verify("CS2024001", rec.Token).Outcome, "breaker still open")
	})
}

func (s *CredentialServiceSuite) TestVerifyParallelScan() {
	s.Run("match wins over a failing probe", func() {
		s.SetupTest()
		s.build(ledger.WithScanMode(ledger.ScanParallel))
		tok := s.seedBeyondBound(7)
		s.backend.failIndices[3] = true

		s.Equal(models.OutcomeValid, s.verify("CS2024099", tok).Outcome)
	})

	s.Run("failing probe without a match is inconclusive", func() {
		s.SetupTest()
		s.build(ledger.WithScanMode(ledger.ScanParallel))
		tok := s.seedBeyondBound(ledger.DefaultMaxScan)
		s.backend.failIndices[3] = true

		s.Equal(models.OutcomeTransportError, s.verify("CS2024099", tok).Outcome)
	})

	s.Run("round trip", func() {
		s.SetupTest()
		s.build(ledger.WithScanMode(ledger.ScanParallel))
		rec := s.issue("CS2024001", "diploma")
		s.Equal(models.OutcomeValid, s.verify("CS2024001", rec.Token).Outcome)
	})
}

func (s *CredentialServiceSuite) TestVerifyDoesNotMutate() {
	rec := s.issue("CS2024001", "diploma")
	before, err := s.memStore.FindByToken(s.ctx, rec.Token)
	s.Require().NoError(err)

	for range 3 {
		s.verify("CS2024001", rec.Token)
		s.verify("WRONG", rec.Token)
	}

	after, err := s.memStore.FindByToken(s.ctx, rec.Token)
	s.Require().NoError(err)
	s.Equal(before, after)
	_, err = s.backend.Read(s.ctx, rec.IdentifierHash, rec.SequenceIndex+1)
	s.ErrorIs(err, ledger.ErrAbsent)
}
