// Package ledger is the append-only record of (identifier hash, index) ->
// document fingerprint that verification trusts. The Client wraps a Backend
// with timeouts, a read circuit breaker and the bounded index scan.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"identix/internal/credential/models"
	"identix/pkg/platform/sentinel"
)

// ErrAbsent is returned by Backend.Read and Backend.Revoke when nothing is
// stored at (key, index). It is a definitive answer, not a transport failure.
var ErrAbsent = fmt.Errorf("ledger: no record at index: %w", sentinel.ErrNotFound)

// Backend is the minimal ledger contract. Append must assign the first free
// index for key and must serialise concurrent appends for the same key.
type Backend interface {
	Append(ctx context.Context, key, value models.Hash256) (index uint64, ref string, err error)
	Read(ctx context.Context, key models.Hash256, index uint64) (models.CredentialRecord, error)
	Revoke(ctx context.Context, key models.Hash256, index uint64) error
}

// Enumerator is implemented by backends that can list every record.
// Only reconciliation uses it.
type Enumerator interface {
	Records(ctx context.Context) iter.Seq2[models.CredentialRecord, error]
}

// Pinger is implemented by backends with a cheap liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Reference renders the ledger reference stored in metadata.
func Reference(key models.Hash256, index uint64) string {
	return key.String() + "/" + strconv.FormatUint(index, 10)
}

// ParseReference is the inverse of Reference.
func ParseReference(ref string) (models.Hash256, uint64, error) {
	keyPart, idxPart, ok := strings.Cut(ref, "/")
	if !ok {
		return models.Hash256{}, 0, errors.New("ledger reference must be <key>/<index>")
	}
	key, err := models.ParseHash256(keyPart)
	if err != nil {
		return models.Hash256{}, 0, err
	}
	idx, err := strconv.ParseUint(idxPart, 10, 64)
	if err != nil {
		return models.Hash256{}, 0, fmt.Errorf("ledger reference index: %w", err)
	}
	return key, idx, nil
}
