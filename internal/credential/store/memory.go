package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"identix/internal/credential/ledger"
	"identix/internal/credential/models"
	"identix/internal/credential/token"
)

// InMemoryStore keeps metadata in maps guarded by a single RWMutex.
type InMemoryStore struct {
	mu           sync.RWMutex
	byToken      map[token.Token]*models.CredentialMetadata
	byIdentifier map[string][]token.Token
	byLedger     map[string]token.Token
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byToken:      make(map[token.Token]*models.CredentialMetadata),
		byIdentifier: make(map[string][]token.Token),
		byLedger:     make(map[string]token.Token),
	}
}

func (s *InMemoryStore) Put(_ context.Context, record *models.CredentialMetadata) error {
	if err := record.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byToken[record.Token]; exists {
		return ErrDuplicateToken
	}
	s.byToken[record.Token] = record.Clone()
	s.byIdentifier[record.StudentIdentifier] = append(s.byIdentifier[record.StudentIdentifier], record.Token)
	s.byLedger[ledger.Reference(record.IdentifierHash, record.SequenceIndex)] = record.Token
	return nil
}

func (s *InMemoryStore) FindByToken(_ context.Context, tok token.Token) (*models.CredentialMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byToken[tok]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *InMemoryStore) QueryByIdentifier(_ context.Context, identifier string) ([]*models.CredentialMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tokens := s.byIdentifier[identifier]
	out := make([]*models.CredentialMetadata, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, s.byToken[tok].Clone())
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) SetStatus(_ context.Context, tok token.Token, status models.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byToken[tok]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	rec.RevokedAt = revokedAt(status, at)
	return nil
}

func (s *InMemoryStore) HasLedgerEntry(_ context.Context, identifierHash models.Hash256, index uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byLedger[ledger.Reference(identifierHash, index)]
	return ok, nil
}

func sortNewestFirst(recs []*models.CredentialMetadata) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].IssuedAt.Equal(recs[j].IssuedAt) {
			return recs[i].IssuedAt.After(recs[j].IssuedAt)
		}
		return recs[i].SequenceIndex > recs[j].SequenceIndex
	})
}
