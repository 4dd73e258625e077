package ledger

import (
	"context"
	"iter"
	"sync"
	"time"

	"identix/internal/credential/models"
	psync "identix/pkg/platform/sync"
)

// MemoryBackend is an in-process ledger for tests and single-node demos.
type MemoryBackend struct {
	keys    *psync.ShardedMutex
	mu      sync.RWMutex
	records map[models.Hash256][]models.CredentialRecord
	now     func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		keys:    psync.NewShardedMutex(),
		records: make(map[models.Hash256][]models.CredentialRecord),
		now:     time.Now,
	}
}

func (b *MemoryBackend) Append(ctx context.Context, key, value models.Hash256) (uint64, string, error) {
	if err := ctx.Err(); err != nil {
		return 0, "", err
	}
	lockKey := key.String()
	b.keys.Lock(lockKey)
	defer b.keys.Unlock(lockKey)

	// Only appenders for this key change its length, and they hold the key lock.
	b.mu.RLock()
	index := uint64(len(b.records[key]))
	b.mu.RUnlock()

	rec := models.CredentialRecord{
		IdentifierHash:      key,
		SequenceIndex:       index,
		DocumentFingerprint: value,
		RecordedAt:          b.now().UTC(),
	}
	b.mu.Lock()
	b.records[key] = append(b.records[key], rec)
	b.mu.Unlock()
	return index, Reference(key, index), nil
}

func (b *MemoryBackend) Read(ctx context.Context, key models.Hash256, index uint64) (models.CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.CredentialRecord{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	recs := b.records[key]
	if index >= uint64(len(recs)) {
		return models.CredentialRecord{}, ErrAbsent
	}
	return recs[index], nil
}

func (b *MemoryBackend) Revoke(ctx context.Context, key models.Hash256, index uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	recs := b.records[key]
	if index >= uint64(len(recs)) {
		return ErrAbsent
	}
	recs[index].Revoked = true
	return nil
}

// Records yields a snapshot taken at call time.
func (b *MemoryBackend) Records(ctx context.Context) iter.Seq2[models.CredentialRecord, error] {
	b.mu.RLock()
	var snapshot []models.CredentialRecord
	for _, recs := range b.records {
		snapshot = append(snapshot, recs...)
	}
	b.mu.RUnlock()
	sortRecords(snapshot)

	return func(yield func(models.CredentialRecord, error) bool) {
		for _, rec := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(models.CredentialRecord{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Tamper overwrites a stored fingerprint. It exists for tests that simulate
// a forged ledger and is not reachable from any production path.
func (b *MemoryBackend) Tamper(key models.Hash256, index uint64, value models.Hash256) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	recs := b.records[key]
	if index >= uint64(len(recs)) {
		return false
	}
	recs[index].DocumentFingerprint = value
	return true
}

// Seed stores a record at an explicit index, filling gaps with zero
// fingerprints. Tests use it to place a match beyond the scan bound.
func (b *MemoryBackend) Seed(key models.Hash256, index uint64, value models.Hash256) {
	b.mu.Lock()
	defer b.mu.Unlock()
	recs := b.records[key]
	for uint64(len(recs)) <= index {
		recs = append(recs, models.CredentialRecord{
			IdentifierHash: key,
			SequenceIndex:  uint64(len(recs)),
			RecordedAt:     b.now().UTC(),
		})
	}
	recs[index].DocumentFingerprint = value
	b.records[key] = recs
}
