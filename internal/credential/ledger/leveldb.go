package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"identix/internal/credential/models"
	psync "identix/pkg/platform/sync"
)

const (
	recordPrefix  = "rec:"
	counterPrefix = "seq:"
)

// LevelDBBackend is a file-backed ledger for single-node deployments.
//
// Layout:
//
//	seq:<key hex>               -> next index, big-endian uint64
//	rec:<key hex>:<index %020d> -> JSON levelDBRecord
type LevelDBBackend struct {
	db   *leveldb.DB
	keys *psync.ShardedMutex
	now  func() time.Time
}

type levelDBRecord struct {
	Fingerprint models.Hash256 `json:"fingerprint"`
	Revoked     bool           `json:"revoked"`
	RecordedAt  time.Time      `json:"recorded_at"`
}

// OpenLevelDB opens (or creates) a ledger database at path.
func OpenLevelDB(path string) (*LevelDBBackend, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb ledger: %w", err)
	}
	return &LevelDBBackend{db: db, keys: psync.NewShardedMutex(), now: time.Now}, nil
}

func (b *LevelDBBackend) Close() error {
	return b.db.Close()
}

func recordKey(key models.Hash256, index uint64) []byte {
	return fmt.Appendf(nil, "%s%x:%020d", recordPrefix, key[:], index)
}

func counterKey(key models.Hash256) []byte {
	return fmt.Appendf(nil, "%s%x", counterPrefix, key[:])
}

func (b *LevelDBBackend) Append(ctx context.Context, key, value models.Hash256) (uint64, string, error) {
	if err := ctx.Err(); err != nil {
		return 0, "", err
	}
	lockKey := key.String()
	b.keys.Lock(lockKey)
	defer b.keys.Unlock(lockKey)

	var index uint64
	raw, err := b.db.Get(counterKey(key), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
	case err != nil:
		return 0, "", fmt.Errorf("read ledger counter: %w", err)
	default:
		index = binary.BigEndian.Uint64(raw)
	}

	body, err := json.Marshal(levelDBRecord{Fingerprint: value, RecordedAt: b.now().UTC()})
	if err != nil {
		return 0, "", fmt.Errorf("encode ledger record: %w", err)
	}
	next := binary.BigEndian.AppendUint64(nil, index+1)

	batch := new(leveldb.Batch)
	batch.Put(recordKey(key, index), body)
	batch.Put(counterKey(key), next)
	if err := b.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return 0, "", fmt.Errorf("write ledger record: %w", err)
	}
	return index, Reference(key, index), nil
}

func (b *LevelDBBackend) Read(ctx context.Context, key models.Hash256, index uint64) (models.CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.CredentialRecord{}, err
	}
	raw, err := b.db.Get(recordKey(key, index), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return models.CredentialRecord{}, ErrAbsent
	}
	if err != nil {
		return models.CredentialRecord{}, fmt.Errorf("read ledger record: %w", err)
	}
	return decodeRecord(key, index, raw)
}

func (b *LevelDBBackend) Revoke(ctx context.Context, key models.Hash256, index uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lockKey := key.String()
	b.keys.Lock(lockKey)
	defer b.keys.Unlock(lockKey)

	k := recordKey(key, index)
	raw, err := b.db.Get(k, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return ErrAbsent
	}
	if err != nil {
		return fmt.Errorf("read ledger record: %w", err)
	}
	var rec levelDBRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fmt.Errorf("decode ledger record: %w", err)
	}
	rec.Revoked = true
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode ledger record: %w", err)
	}
	return b.db.Put(k, body, &opt.WriteOptions{Sync: true})
}

func (b *LevelDBBackend) Records(ctx context.Context) iter.Seq2[models.CredentialRecord, error] {
	return func(yield func(models.CredentialRecord, error) bool) {
		it := b.db.NewIterator(util.BytesPrefix([]byte(recordPrefix)), nil)
		defer it.Release()

		for it.Next() {
			if err := ctx.Err(); err != nil {
				yield(models.CredentialRecord{}, err)
				return
			}
			key, index, err := parseRecordKey(string(it.Key()))
			if err != nil {
				yield(models.CredentialRecord{}, err)
				return
			}
			rec, err := decodeRecord(key, index, it.Value())
			if !yield(rec, err) || err != nil {
				return
			}
		}
		if err := it.Error(); err != nil {
			yield(models.CredentialRecord{}, fmt.Errorf("iterate ledger records: %w", err))
		}
	}
}

func decodeRecord(key models.Hash256, index uint64, raw []byte) (models.CredentialRecord, error) {
	var rec levelDBRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.CredentialRecord{}, fmt.Errorf("decode ledger record: %w", err)
	}
	return models.CredentialRecord{
		IdentifierHash:      key,
		SequenceIndex:       index,
		DocumentFingerprint: rec.Fingerprint,
		Revoked:             rec.Revoked,
		RecordedAt:          rec.RecordedAt,
	}, nil
}

func parseRecordKey(k string) (models.Hash256, uint64, error) {
	rest := strings.TrimPrefix(k, recordPrefix)
	keyHex, idx, ok := strings.Cut(rest, ":")
	if !ok {
		return models.Hash256{}, 0, fmt.Errorf("malformed ledger key %q", k)
	}
	return ParseReference(keyHex + "/" + idx)
}
