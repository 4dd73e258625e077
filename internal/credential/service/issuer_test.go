package service

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"identix/internal/credential/digest"
	"identix/internal/credential/ledger"
	"identix/internal/credential/models"
	"identix/internal/credential/store"
	"identix/internal/credential/token"
	dErrors "identix/pkg/domain-errors"
	"identix/pkg/platform/audit"
	pkgtestutil "identix/pkg/testutil"
)

func (s *CredentialServiceSuite) TestIssue() {
	s.Run("stores metadata matching the ledger entry", func() {
		s.SetupTest()
		rec := s.issue("  CS2024001 ", "%PDF-1.7 diploma")

		s.True(token.Valid(string(rec.Token)))
		s.Equal("CS2024001", rec.StudentIdentifier)
		s.Equal(digest.MustIdentifierHash("CS2024001"), rec.IdentifierHash)
		s.Equal(digest.Fingerprint([]byte("%PDF-1.7 diploma")), rec.DocumentFingerprint)
		s.Equal(uint64(0), rec.SequenceIndex)
		s.Equal(ledger.Reference(rec.IdentifierHash, 0), rec.LedgerReference)
		s.Equal(models.StatusValid, rec.Status)
		s.Equal("registrar-01", rec.IssuerID)
		s.Equal("Ada Lovelace", rec.Details.HolderName)

		onLedger, err := s.backend.Read(s.ctx, rec.IdentifierHash, 0)
		s.Require().NoError(err)
		s.Equal(rec.DocumentFingerprint, onLedger.DocumentFingerprint)

		doc, ok := s.uploader.Get(rec.DocumentLocation)
		s.Require().True(ok)
		s.Equal("%PDF-1.7 diploma", string(doc))

		stored, err := s.memStore.FindByToken(s.ctx, rec.Token)
		s.Require().NoError(err)
		s.Equal(rec.ID, stored.ID)
	})

	s.Run("second issuance for an identifier takes the next index", func() {
		s.SetupTest()
		first := s.issue("CS2024001", "diploma")
		second := s.issue("CS2024001", "diploma")

		s.Equal(uint64(0), first.SequenceIndex)
		s.Equal(uint64(1), second.SequenceIndex)
		s.NotEqual(first.Token, second.Token)
	})

	s.Run("counts transitions and audits success", func() {
		s.SetupTest()
		rec := s.issue("CS2024001", "diploma")

		for _, state := range []models.IssuanceState{
			models.StateUploading, models.StateHashing, models.StateLedgerWriting,
			models.StateLedgerConfirming, models.StateMetadataWriting, models.StateDone,
		} {
			s.Equal(1.0, testutil.ToFloat64(s.metrics.IssuanceTotal.WithLabelValues(string(state))), state)
		}
		s.Equal(0.0, testutil.ToFloat64(s.metrics.IssuanceTotal.WithLabelValues(string(models.StateFailed))))

		s.Equal(1, s.auditor.count(audit.EventCredentialIssued))
		last := s.auditor.last()
		s.Equal(string(rec.Token), last.attrs["token"])
		s.Equal(rec.IdentifierHash.String(), last.attrs["identifier_hash"])
		_, leaked := last.attrs["student_identifier"]
		s.False(leaked)
	})
}

func (s *CredentialServiceSuite) TestIssueRejectsBadInput() {
	cases := []struct {
		name string
		req  models.IssueRequest
		code dErrors.Code
	}{
		{"missing issuer", models.IssueRequest{Identifier: "CS1", Document: []byte("x")}, dErrors.CodeUnauthorized},
		{"blank identifier", models.IssueRequest{Identifier: "  ", Document: []byte("x"), IssuerID: "r"}, dErrors.CodeInvalidInput},
		{"long identifier", models.IssueRequest{Identifier: strings.Repeat("9", 65), Document: []byte("x"), IssuerID: "r"}, dErrors.CodeValidation},
		{"empty document", models.IssueRequest{Identifier: "CS1", IssuerID: "r"}, dErrors.CodeInvalidInput},
		{"long file name", models.IssueRequest{Identifier: "CS1", Document: []byte("x"), IssuerID: "r", FileName: strings.Repeat("f", 256)}, dErrors.CodeValidation},
		{"long detail", models.IssueRequest{Identifier: "CS1", Document: []byte("x"), IssuerID: "r", Details: models.Details{University: strings.Repeat("u", 201)}}, dErrors.CodeValidation},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.SetupTest()
			_, err := s.issuer.Issue(s.ctx, tc.req)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, tc.code), "got %v", err)
			s.Zero(s.uploader.Len(), "nothing uploaded for rejected input")
		})
	}

	s.Run("oversized document", func() {
		s.SetupTest()
		small := NewIssuer(s.uploader, s.ledger, s.store, WithMaxDocumentBytes(4))
		_, err := small.Issue(s.ctx, models.IssueRequest{Identifier: "CS1", Document: []byte("12345"), IssuerID: "r"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *CredentialServiceSuite) TestIssueFailures() {
	s.Run("upload failure stops before the ledger", func() {
		s.SetupTest()
		s.uploader.Fail = errors.New("ipfs: 502 bad gateway")

		_, err := s.issuer.Issue(s.ctx, models.IssueRequest{Identifier: "CS1", Document: []byte("x"), IssuerID: "r"})
		s.True(dErrors.HasCode(err, dErrors.CodeStorageUpload))

		_, readErr := s.backend.Read(s.ctx, digest.MustIdentifierHash("CS1"), 0)
		s.ErrorIs(readErr, ledger.ErrAbsent)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.IssuanceTotal.WithLabelValues(string(models.StateFailed))))
		s.Equal(1, s.auditor.count(audit.EventIssuanceFailed))
		s.Equal(string(models.StateUploading), s.auditor.last().attrs["failed_state"])
	})

	s.Run("ledger write failure leaves no metadata", func() {
		s.SetupTest()
		s.backend.appendErr = errBackendDown

		_, err := s.issuer.Issue(s.ctx, models.IssueRequest{Identifier: "CS1", Document: []byte("x"), IssuerID: "r"})
		s.True(dErrors.HasCode(err, dErrors.CodeLedgerWrite))

		list, listErr := s.memStore.QueryByIdentifier(s.ctx, "CS1")
		s.Require().NoError(listErr)
		s.Empty(list)
	})

	s.Run("unconfirmed ledger write fails issuance", func() {
		s.SetupTest()
		s.backend.failIndices[0] = true

		_, err := s.issuer.Issue(s.ctx, models.IssueRequest{Identifier: "CS1", Document: []byte("x"), IssuerID: "r"})
		s.True(dErrors.HasCode(err, dErrors.CodeLedgerWrite))
	})

	s.Run("metadata failure orphans the ledger entry", func() {
		s.SetupTest()
		s.store.putErr = errors.New("pq: connection reset")

		_, err := s.issuer.Issue(s.ctx, models.IssueRequest{Identifier: "CS1", Document: []byte("x"), IssuerID: "r"})
		s.True(dErrors.HasCode(err, dErrors.CodeMetadataWrite))

		orphan, readErr := s.backend.Read(s.ctx, digest.MustIdentifierHash("CS1"), 0)
		s.Require().NoError(readErr)
		s.Equal(digest.Fingerprint([]byte("x")), orphan.DocumentFingerprint)
		has, _ := s.memStore.HasLedgerEntry(s.ctx, orphan.IdentifierHash, 0)
		s.False(has)
	})
}

func (s *CredentialServiceSuite) TestDuplicateTokenRetry() {
	s.Run("regenerates until the store accepts", func() {
		s.SetupTest()
		tokens := &scriptedTokens{tokens: []token.Token{"IDX-AAAAAA", "IDX-AAAAAA", "IDX-BBBBBB"}}
		s.issuer = NewIssuer(s.uploader, s.ledger, s.store, WithTokenSource(tokens), WithIssuerMetrics(s.metrics))

		first, err := s.issuer.Issue(s.ctx, models.IssueRequest{Identifier: "CS1", Document: []byte("a"), IssuerID: "r"})
		s.Require().NoError(err)
		second, err := s.issuer.Issue(s.ctx, models.IssueRequest{Identifier: "CS2", Document: []byte("b"), IssuerID: "r"})
		s.Require().NoError(err)

		s.Equal(token.Token("IDX-AAAAAA"), first.Token)
		s.Equal(token.Token("IDX-BBBBBB"), second.Token)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.TokenCollisions))
	})

	s.Run("gives up after bounded attempts without surfacing the duplicate", func() {
		s.SetupTest()
		tokens := &scriptedTokens{tokens: []token.Token{"IDX-CCCCCC"}}
		s.issuer = NewIssuer(s.uploader, s.ledger, s.store, WithTokenSource(tokens))

		_, err := s.issuer.Issue(s.ctx, models.IssueRequest{Identifier: "CS1", Document: []byte("a"), IssuerID: "r"})
		s.Require().NoError(err)

		tokens.next = 0
		_, err = s.issuer.Issue(s.ctx, models.IssueRequest{Identifier: "CS2", Document: []byte("b"), IssuerID: "r"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeMetadataWrite))
		s.NotErrorIs(err, store.ErrDuplicateToken)
		s.Equal(MaxTokenAttempts, tokens.next)
	})
}

func (s *CredentialServiceSuite) TestConcurrentIssuanceSameIdentifier() {
	const n = 10
	results := make(chan *models.CredentialMetadata, n)
	outcome := pkgtestutil.RunConcurrent(n, func(i int) error {
		rec, err := s.issuer.Issue(s.ctx, models.IssueRequest{
			Identifier: "CS2024001",
			Document:   []byte{byte(i)},
			IssuerID:   "registrar-01",
		})
		if err == nil {
			results <- rec
		}
		return err
	})
	close(results)
	s.Require().Equal(int32(n), outcome.Successes)

	tokens := map[token.Token]bool{}
	indices := map[uint64]bool{}
	for rec := range results {
		tokens[rec.Token] = true
		indices[rec.SequenceIndex] = true
		s.Equal(models.OutcomeValid, s.verify("CS2024001", rec.Token).Outcome)
	}
	s.Len(tokens, n)
	s.Len(indices, n)
}

func (s *CredentialServiceSuite) TestRevoke() {
	s.Run("revoked credential verifies as revoked", func() {
		s.SetupTest()
		rec := s.issue("CS2024001", "diploma")

		revoked, err := s.issuer.Revoke(s.ctx, strings.ToLower(string(rec.Token)), "registrar-01")
		s.Require().NoError(err)
		s.Equal(models.StatusRevoked, revoked.Status)
		s.Require().NotNil(revoked.RevokedAt)

		onLedger, err := s.backend.Read(s.ctx, rec.IdentifierHash, rec.SequenceIndex)
		s.Require().NoError(err)
		s.True(onLedger.Revoked)
		s.Equal(rec.DocumentFingerprint, onLedger.DocumentFingerprint)

		res := s.verify("CS2024001", rec.Token)
		s.Equal(models.OutcomeRevoked, res.Outcome)
		s.False(res.Valid())
		s.Equal(1, s.auditor.count(audit.EventCredentialRevoked))
	})

	s.Run("is idempotent", func() {
		s.SetupTest()
		rec := s.issue("CS2024001", "diploma")
		_, err := s.issuer.Revoke(s.ctx, string(rec.Token), "registrar-01")
		s.Require().NoError(err)
		again, err := s.issuer.Revoke(s.ctx, string(rec.Token), "registrar-01")
		s.Require().NoError(err)
		s.Equal(models.StatusRevoked, again.Status)
		s.Equal(1, s.auditor.count(audit.EventCredentialRevoked))
	})

	s.Run("ledger flag failure does not undo metadata revocation", func() {
		s.SetupTest()
		rec := s.issue("CS2024001", "diploma")
		s.backend.revokeErr = errBackendDown

		revoked, err := s.issuer.Revoke(s.ctx, string(rec.Token), "registrar-01")
		s.Require().NoError(err)
		s.Equal(models.StatusRevoked, revoked.Status)
		s.Equal(models.OutcomeRevoked, s.verify("CS2024001", rec.Token).Outcome)
	})

	s.Run("revoking one credential leaves a reissue of the same document valid", func() {
		s.SetupTest()
		first := s.issue("CS2024001", "diploma")
		second := s.issue("CS2024001", "diploma")
		s.Require().NotEqual(first.SequenceIndex, second.SequenceIndex)

		_, err := s.issuer.Revoke(s.ctx, string(first.Token), "registrar-01")
		s.Require().NoError(err)

		s.Equal(models.OutcomeRevoked, s.verify("CS2024001", first.Token).Outcome)
		res := s.verify("CS2024001", second.Token)
		s.Equal(models.OutcomeValid, res.Outcome)
		s.True(res.Valid())
	})

	s.Run("rejects unknown tokens and missing issuer", func() {
		s.SetupTest()
		_, err := s.issuer.Revoke(s.ctx, "IDX-ZZZZZZ", "registrar-01")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		_, err = s.issuer.Revoke(s.ctx, "garbage", "registrar-01")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		_, err = s.issuer.Revoke(s.ctx, "IDX-ZZZZZZ", "")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *CredentialServiceSuite) TestListByIdentifier() {
	first := s.issue("CS2024001", "bachelor")
	second := s.issue("CS2024001", "master")
	s.issue("CS2024002", "other")

	list, err := s.issuer.ListByIdentifier(s.ctx, " CS2024001 ")
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(second.Token, list[0].Token)
	s.Equal(first.Token, list[1].Token)

	_, err = s.issuer.ListByIdentifier(s.ctx, "")
	s.Error(err)
}
