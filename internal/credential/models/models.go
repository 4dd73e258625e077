package models

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"identix/internal/credential/token"
	dErrors "identix/pkg/domain-errors"
	"identix/pkg/platform/validation"
)

func init() {
	validation.RegisterStringRule("credtoken", token.Valid)
}

// Hash256 is a 32-byte digest: document fingerprints and identifier hashes.
type Hash256 [32]byte

// String renders the hash as 0x-prefixed lowercase hex.
func (h Hash256) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash256) IsZero() bool {
	return h == Hash256{}
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash256) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash256) UnmarshalText(b []byte) error {
	parsed, err := ParseHash256(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash256 parses 64 hex digits, with or without a 0x prefix.
func ParseHash256(s string) (Hash256, error) {
	var h Hash256
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(s) != 2*len(h) {
		return h, dErrors.New(dErrors.CodeInvalidInput, "hash must be 64 hex digits")
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, dErrors.New(dErrors.CodeInvalidInput, "hash must be hex encoded")
	}
	return h, nil
}

// CredentialRecord is the ledger-resident entry. The fingerprint at a given
// (IdentifierHash, SequenceIndex) never changes; Revoked is an out-of-band flag.
type CredentialRecord struct {
	IdentifierHash      Hash256
	SequenceIndex       uint64
	DocumentFingerprint Hash256
	Revoked             bool
	RecordedAt          time.Time
}

// Status is the mutable lifecycle state of issued metadata.
type Status string

const (
	StatusValid   Status = "valid"
	StatusRevoked Status = "revoked"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusValid, StatusRevoked:
		return Status(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "status must be valid or revoked")
}

// Details are the optional descriptive fields printed on a credential.
type Details struct {
	HolderName string `validate:"max=200"`
	Course     string `validate:"max=200"`
	University string `validate:"max=200"`
	Department string `validate:"max=200"`
}

// CredentialMetadata is the off-ledger record a token resolves to.
type CredentialMetadata struct {
	ID                  uuid.UUID
	Token               token.Token `validate:"required,credtoken"`
	StudentIdentifier   string      `validate:"required,notblank,max=64"`
	IdentifierHash      Hash256
	DocumentFingerprint Hash256
	SequenceIndex       uint64
	LedgerReference     string `validate:"required"`
	DocumentLocation    string `validate:"required,uri"`
	FileName            string `validate:"max=255"`
	Details             Details
	IssuerID            string    `validate:"required,max=128"`
	IssuedAt            time.Time `validate:"required"`
	Status              Status    `validate:"required,oneof=valid revoked"`
	RevokedAt           *time.Time
}

// Validate checks the fixed schema at the store boundary.
func (m *CredentialMetadata) Validate() error {
	if m == nil {
		return dErrors.New(dErrors.CodeValidation, "metadata is required")
	}
	if err := validation.Validate(m); err != nil {
		return err
	}
	if m.ID == uuid.Nil {
		return dErrors.New(dErrors.CodeValidation, "id is required")
	}
	if m.IdentifierHash.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "identifier_hash is required")
	}
	if m.DocumentFingerprint.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "document_fingerprint is required")
	}
	if m.Status == StatusRevoked && m.RevokedAt == nil {
		return dErrors.New(dErrors.CodeValidation, "revoked_at is required for revoked credentials")
	}
	return nil
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (m *CredentialMetadata) Clone() *CredentialMetadata {
	if m == nil {
		return nil
	}
	c := *m
	if m.RevokedAt != nil {
		t := *m.RevokedAt
		c.RevokedAt = &t
	}
	return &c
}

// IssueRequest is the input to issuance.
type IssueRequest struct {
	Identifier string
	Document   []byte
	FileName   string
	IssuerID   string
	Details    Details
}

// IssuanceState names the steps of an issuance run.
type IssuanceState string

const (
	StateIdle             IssuanceState = "idle"
	StateUploading        IssuanceState = "uploading"
	StateHashing          IssuanceState = "hashing"
	StateLedgerWriting    IssuanceState = "ledger_writing"
	StateLedgerConfirming IssuanceState = "ledger_confirming"
	StateMetadataWriting  IssuanceState = "metadata_writing"
	StateDone             IssuanceState = "done"
	StateFailed           IssuanceState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s IssuanceState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Outcome classifies a verification.
type Outcome string

const (
	OutcomeValid              Outcome = "valid"
	OutcomeTokenNotFound      Outcome = "token_not_found"
	OutcomeIdentifierMismatch Outcome = "identifier_mismatch"
	OutcomeLedgerMismatch     Outcome = "ledger_mismatch"
	OutcomeTransportError     Outcome = "transport_error"
	OutcomeRevoked            Outcome = "revoked"
)

// VerificationResult is returned by every verification. Only OutcomeValid
// means the document is authentic and current; OutcomeTransportError means
// the check was inconclusive, not that the credential is forged.
type VerificationResult struct {
	Outcome  Outcome
	Metadata *CredentialMetadata
	// MatchedIndex is set when a ledger entry matched.
	MatchedIndex *uint64
	// Err carries the transport failure behind OutcomeTransportError.
	Err error
}

// Valid reports whether the credential verified.
func (r VerificationResult) Valid() bool {
	return r.Outcome == OutcomeValid
}

// Inconclusive reports whether the result must not be shown as a failure.
func (r VerificationResult) Inconclusive() bool {
	return r.Outcome == OutcomeTransportError
}
