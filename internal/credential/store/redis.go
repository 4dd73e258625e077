package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"identix/internal/credential/ledger"
	"identix/internal/credential/models"
	"identix/internal/credential/token"
)

const (
	redisTokenPrefix      = "identix:credential:token:"
	redisIdentifierPrefix = "identix:credential:identifier:"
	redisLedgerPrefix     = "identix:credential:ledger:"
)

// RedisStore keeps each record as JSON under its token key (SET NX gives the
// conditional insert), with a sorted set per identifier and a ledger-reference
// key for reconciliation lookups.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func tokenKey(tok token.Token) string        { return redisTokenPrefix + string(tok) }
func identifierKey(identifier string) string { return redisIdentifierPrefix + identifier }
func ledgerKey(h models.Hash256, i uint64) string {
	return redisLedgerPrefix + ledger.Reference(h, i)
}

func (s *RedisStore) Put(ctx context.Context, record *models.CredentialMetadata) error {
	if err := record.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode credential metadata: %w", err)
	}

	created, err := s.client.SetNX(ctx, tokenKey(record.Token), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("insert credential metadata: %w", err)
	}
	if !created {
		return ErrDuplicateToken
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, identifierKey(record.StudentIdentifier), redis.Z{
			Score:  float64(record.IssuedAt.UnixMilli()),
			Member: string(record.Token),
		})
		p.Set(ctx, ledgerKey(record.IdentifierHash, record.SequenceIndex), string(record.Token), 0)
		return nil
	})
	if err != nil {
		// Leave no half-indexed record behind; the token stays free for a retry.
		_ = s.client.Del(context.WithoutCancel(ctx), tokenKey(record.Token)).Err()
		return fmt.Errorf("index credential metadata: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByToken(ctx context.Context, tok token.Token) (*models.CredentialMetadata, error) {
	raw, err := s.client.Get(ctx, tokenKey(tok)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find credential metadata by token: %w", err)
	}
	return decodeMetadata(raw)
}

func (s *RedisStore) QueryByIdentifier(ctx context.Context, identifier string) ([]*models.CredentialMetadata, error) {
	tokens, err := s.client.ZRevRange(ctx, identifierKey(identifier), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("query credential metadata: %w", err)
	}
	if len(tokens) == 0 {
		return []*models.CredentialMetadata{}, nil
	}
	keys := make([]string, len(tokens))
	for i, tok := range tokens {
		keys[i] = tokenKey(token.Token(tok))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load credential metadata: %w", err)
	}

	out := make([]*models.CredentialMetadata, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decodeMetadata([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *RedisStore) SetStatus(ctx context.Context, tok token.Token, status models.Status, at time.Time) error {
	key := tokenKey(tok)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load credential metadata: %w", err)
		}
		rec, err := decodeMetadata(raw)
		if err != nil {
			return err
		}
		rec.Status = status
		rec.RevokedAt = revokedAt(status, at)
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode credential metadata: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, payload, 0)
			return nil
		})
		if err != nil {
			return fmt.Errorf("update credential status: %w", err)
		}
		return nil
	}, key)
}

func (s *RedisStore) HasLedgerEntry(ctx context.Context, identifierHash models.Hash256, index uint64) (bool, error) {
	n, err := s.client.Exists(ctx, ledgerKey(identifierHash, index)).Result()
	if err != nil {
		return false, fmt.Errorf("check ledger entry metadata: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decodeMetadata(raw []byte) (*models.CredentialMetadata, error) {
	var rec models.CredentialMetadata
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode credential metadata: %w", err)
	}
	return &rec, nil
}
