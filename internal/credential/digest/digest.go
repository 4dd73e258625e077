// Package digest computes the two hashes the credential protocol relies on:
// the document fingerprint stored on the ledger and the identifier hash used
// as the ledger key.
package digest

import (
	"crypto/sha256"
	"strings"

	"golang.org/x/crypto/sha3"

	"identix/internal/credential/models"
	dErrors "identix/pkg/domain-errors"
	"identix/pkg/platform/validation"
)

// Fingerprint is SHA-256 over the exact document bytes. Empty input is allowed.
func Fingerprint(document []byte) models.Hash256 {
	return sha256.Sum256(document)
}

// CanonicalIdentifier trims surrounding white space and keeps case.
// Empty and over-long identifiers are rejected.
func CanonicalIdentifier(identifier string) (string, error) {
	canonical := strings.TrimSpace(identifier)
	if canonical == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "student identifier is required")
	}
	if err := validation.CheckStringLength("student identifier", canonical, validation.MaxIdentifierLength); err != nil {
		return "", err
	}
	return canonical, nil
}

// IdentifierHash is legacy Keccak-256 over the UTF-8 bytes of the canonical
// identifier, matching keys written by Ethereum-style ledgers.
func IdentifierHash(identifier string) (models.Hash256, error) {
	canonical, err := CanonicalIdentifier(identifier)
	if err != nil {
		return models.Hash256{}, err
	}
	return keccak(canonical), nil
}

// MustIdentifierHash is IdentifierHash for identifiers already known to be canonical.
func MustIdentifierHash(canonical string) models.Hash256 {
	return keccak(canonical)
}

func keccak(s string) models.Hash256 {
	var out models.Hash256
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(s))
	h.Sum(out[:0])
	return out
}
