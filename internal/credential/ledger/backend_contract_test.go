package ledger

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identix/internal/credential/models"
	"identix/pkg/testutil"
)

// runBackendContract exercises the behaviour every Backend must share.
func runBackendContract(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("first free index per key", func(t *testing.T) {
		keyA := models.Hash256{0xA1}
		keyB := models.Hash256{0xB1}

		i0, ref0, err := b.Append(ctx, keyA, models.Hash256{1})
		require.NoError(t, err)
		i1, _, err := b.Append(ctx, keyA, models.Hash256{2})
		require.NoError(t, err)
		j0, _, err := b.Append(ctx, keyB, models.Hash256{3})
		require.NoError(t, err)

		assert.Equal(t, uint64(0), i0)
		assert.Equal(t, uint64(1), i1)
		assert.Equal(t, uint64(0), j0)
		assert.Equal(t, Reference(keyA, 0), ref0)

		rec, err := b.Read(ctx, keyA, 1)
		require.NoError(t, err)
		assert.Equal(t, models.Hash256{2}, rec.DocumentFingerprint)
		assert.Equal(t, keyA, rec.IdentifierHash)
		assert.Equal(t, uint64(1), rec.SequenceIndex)
		assert.False(t, rec.Revoked)
	})

	t.Run("absent index", func(t *testing.T) {
		_, err := b.Read(ctx, models.Hash256{0xEE}, 0)
		assert.True(t, errors.Is(err, ErrAbsent))
		assert.True(t, errors.Is(b.Revoke(ctx, models.Hash256{0xEE}, 0), ErrAbsent))
	})

	t.Run("revoke keeps fingerprint", func(t *testing.T) {
		key := models.Hash256{0xC1}
		idx, _, err := b.Append(ctx, key, models.Hash256{9})
		require.NoError(t, err)
		require.NoError(t, b.Revoke(ctx, key, idx))

		rec, err := b.Read(ctx, key, idx)
		require.NoError(t, err)
		assert.True(t, rec.Revoked)
		assert.Equal(t, models.Hash256{9}, rec.DocumentFingerprint)
	})

	t.Run("concurrent appends for one key get distinct indices", func(t *testing.T) {
		key := models.Hash256{0xD1}
		const n = 16
		indices := make(chan uint64, n)
		result := testutil.RunConcurrent(n, func(i int) error {
			idx, _, err := b.Append(ctx, key, models.Hash256{byte(i + 1)})
			if err == nil {
				indices <- idx
			}
			return err
		})
		close(indices)
		require.Equal(t, int32(n), result.Successes)

		var got []uint64
		for idx := range indices {
			got = append(got, idx)
		}
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		require.Len(t, got, n)
		for i, idx := range got {
			assert.Equal(t, uint64(i), idx)
		}
	})

	if e, ok := b.(Enumerator); ok {
		t.Run("enumerates every record", func(t *testing.T) {
			count := 0
			for rec, err := range e.Records(ctx) {
				require.NoError(t, err)
				assert.False(t, rec.IdentifierHash.IsZero())
				count++
			}
			assert.GreaterOrEqual(t, count, 2+1+1+16)
		})
	}
}

func TestMemoryBackend(t *testing.T) {
	runBackendContract(t, NewMemoryBackend())
}

func TestMemoryBackend_SeedAndTamper(t *testing.T) {
	b := NewMemoryBackend()
	key := models.Hash256{0x10}
	b.Seed(key, 3, models.Hash256{7})

	rec, err := b.Read(context.Background(), key, 3)
	require.NoError(t, err)
	assert.Equal(t, models.Hash256{7}, rec.DocumentFingerprint)

	assert.True(t, b.Tamper(key, 3, models.Hash256{8}))
	assert.False(t, b.Tamper(key, 4, models.Hash256{8}))

	idx, _, err := b.Append(context.Background(), key, models.Hash256{1})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), idx)
}

func TestLevelDBBackend(t *testing.T) {
	dir := t.TempDir()
	b, err := OpenLevelDB(dir)
	require.NoError(t, err)
	runBackendContract(t, b)
	require.NoError(t, b.Close())

	t.Run("counter survives reopen", func(t *testing.T) {
		reopened, err := OpenLevelDB(dir)
		require.NoError(t, err)
		defer reopened.Close()

		idx, _, err := reopened.Append(context.Background(), models.Hash256{0xA1}, models.Hash256{4})
		require.NoError(t, err)
		assert.Equal(t, uint64(2), idx)
	})
}
