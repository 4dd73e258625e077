package store

import (
	"context"
	"time"

	"identix/internal/credential/models"
	"identix/internal/credential/token"
)

type timeoutStore struct {
	next    Store
	timeout time.Duration
}

// WithTimeout bounds every call on next by d. A non-positive d returns next unchanged.
func WithTimeout(next Store, d time.Duration) Store {
	if d <= 0 {
		return next
	}
	return &timeoutStore{next: next, timeout: d}
}

func (s *timeoutStore) Put(ctx context.Context, record *models.CredentialMetadata) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Put(ctx, record)
}

func (s *timeoutStore) FindByToken(ctx context.Context, tok token.Token) (*models.CredentialMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.FindByToken(ctx, tok)
}

func (s *timeoutStore) QueryByIdentifier(ctx context.Context, identifier string) ([]*models.CredentialMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.QueryByIdentifier(ctx, identifier)
}

func (s *timeoutStore) SetStatus(ctx context.Context, tok token.Token, status models.Status, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.SetStatus(ctx, tok, status, at)
}

func (s *timeoutStore) HasLedgerEntry(ctx context.Context, identifierHash models.Hash256, index uint64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.HasLedgerEntry(ctx, identifierHash, index)
}
