package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"identix/internal/credential/digest"
	"identix/internal/credential/models"
	"identix/internal/credential/token"
)

// Fixed values for deterministic test data.
var TestValues = struct {
	StudentID  string
	Token      token.Token
	IssuerID   string
	Document   []byte
	IssuedAt   time.Time
	HolderName string
	Course     string
}{
	StudentID:  "CS2024001",
	Token:      token.Token("IDX-A7B2C9"),
	IssuerID:   "registrar@uni.example",
	Document:   []byte("%PDF-1.7 diploma"),
	IssuedAt:   time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	HolderName: "Ada Lovelace",
	Course:     "Computer Science",
}

// CredentialBuilder provides a fluent interface for building metadata
// records that pass CredentialMetadata.Validate.
type CredentialBuilder struct {
	record *models.CredentialMetadata
}

// NewCredentialBuilder creates a builder for a valid, unrevoked credential
// at sequence index 0.
func NewCredentialBuilder() *CredentialBuilder {
	b := &CredentialBuilder{
		record: &models.CredentialMetadata{
			ID:        uuid.New(),
			Token:     TestValues.Token,
			FileName:  "diploma.pdf",
			Details:   models.Details{HolderName: TestValues.HolderName, Course: TestValues.Course},
			IssuerID:  TestValues.IssuerID,
			IssuedAt:  TestValues.IssuedAt,
			Status:    models.StatusValid,
			RevokedAt: nil,
		},
	}
	return b.WithStudentID(TestValues.StudentID).WithDocument(TestValues.Document)
}

func (b *CredentialBuilder) WithToken(tok token.Token) *CredentialBuilder {
	b.record.Token = tok
	return b
}

// WithStudentID sets the identifier and its hash. The identifier must
// already be canonical.
func (b *CredentialBuilder) WithStudentID(identifier string) *CredentialBuilder {
	b.record.StudentIdentifier = identifier
	b.record.IdentifierHash = digest.MustIdentifierHash(identifier)
	return b.refreshReference()
}

// WithDocument sets the fingerprint and a content address derived from it.
func (b *CredentialBuilder) WithDocument(document []byte) *CredentialBuilder {
	fp := digest.Fingerprint(document)
	b.record.DocumentFingerprint = fp
	b.record.DocumentLocation = "mem://sha256-" + fp.String()[2:]
	return b
}

func (b *CredentialBuilder) WithFingerprint(fp models.Hash256) *CredentialBuilder {
	b.record.DocumentFingerprint = fp
	return b
}

func (b *CredentialBuilder) WithIndex(index uint64) *CredentialBuilder {
	b.record.SequenceIndex = index
	return b.refreshReference()
}

func (b *CredentialBuilder) WithIssuer(issuerID string) *CredentialBuilder {
	b.record.IssuerID = issuerID
	return b
}

func (b *CredentialBuilder) WithDetails(d models.Details) *CredentialBuilder {
	b.record.Details = d
	return b
}

func (b *CredentialBuilder) IssuedAt(at time.Time) *CredentialBuilder {
	b.record.IssuedAt = at
	return b
}

// Revoked marks the credential revoked at the given time.
func (b *CredentialBuilder) Revoked(at time.Time) *CredentialBuilder {
	b.record.Status = models.StatusRevoked
	b.record.RevokedAt = &at
	return b
}

func (b *CredentialBuilder) Build() *models.CredentialMetadata {
	return b.record.Clone()
}

// refreshReference keeps the ledger reference in the "<key>/<index>" form
// the ledger client produces.
func (b *CredentialBuilder) refreshReference() *CredentialBuilder {
	b.record.LedgerReference = fmt.Sprintf("%s/%d", b.record.IdentifierHash, b.record.SequenceIndex)
	return b
}
