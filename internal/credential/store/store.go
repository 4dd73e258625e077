// Package store persists credential metadata: the off-ledger record a token
// resolves to. Every backend enforces token uniqueness with an atomic
// conditional insert.
package store

import (
	"context"
	"fmt"
	"time"

	"identix/internal/credential/models"
	"identix/internal/credential/token"
	"identix/pkg/platform/sentinel"
)

var (
	ErrNotFound       = fmt.Errorf("credential metadata: %w", sentinel.ErrNotFound)
	ErrDuplicateToken = fmt.Errorf("credential token already issued: %w", sentinel.ErrConflict)
)

// Store is the metadata store contract.
type Store interface {
	// Put inserts record unless its token exists, in which case it returns
	// ErrDuplicateToken and stores nothing.
	Put(ctx context.Context, record *models.CredentialMetadata) error
	FindByToken(ctx context.Context, tok token.Token) (*models.CredentialMetadata, error)
	// QueryByIdentifier returns every record for a canonical identifier, newest first.
	QueryByIdentifier(ctx context.Context, identifier string) ([]*models.CredentialMetadata, error)
	// SetStatus changes only the status; revoking stamps RevokedAt with at.
	SetStatus(ctx context.Context, tok token.Token, status models.Status, at time.Time) error
	HasLedgerEntry(ctx context.Context, identifierHash models.Hash256, index uint64) (bool, error)
}

func revokedAt(status models.Status, at time.Time) *time.Time {
	if status != models.StatusRevoked {
		return nil
	}
	t := at.UTC()
	return &t
}
