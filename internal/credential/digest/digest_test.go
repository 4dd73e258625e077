package digest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identix/internal/credential/models"
	dErrors "identix/pkg/domain-errors"
)

func TestFingerprint(t *testing.T) {
	t.Run("known vector", func(t *testing.T) {
		assert.Equal(t,
			"0xba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
			Fingerprint([]byte("abc")).String())
	})

	t.Run("deterministic", func(t *testing.T) {
		doc := []byte("%PDF-1.7 diploma for CS2024001")
		assert.Equal(t, Fingerprint(doc), Fingerprint(append([]byte(nil), doc...)))
	})

	t.Run("distinct inputs differ", func(t *testing.T) {
		assert.NotEqual(t, Fingerprint([]byte("diploma-a")), Fingerprint([]byte("diploma-b")))
	})

	t.Run("empty input allowed", func(t *testing.T) {
		assert.False(t, Fingerprint(nil).IsZero())
		assert.Equal(t, Fingerprint(nil), Fingerprint([]byte{}))
	})
}

func TestIdentifierHash(t *testing.T) {
	t.Run("legacy keccak vector", func(t *testing.T) {
		h, err := IdentifierHash("abc")
		require.NoError(t, err)
		assert.Equal(t,
			"0x4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45",
			h.String())
	})

	t.Run("surrounding white space ignored", func(t *testing.T) {
		a, err := IdentifierHash("CS2024001")
		require.NoError(t, err)
		b, err := IdentifierHash("  CS2024001\t\n")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("case sensitive", func(t *testing.T) {
		a, err := IdentifierHash("cs2024001")
		require.NoError(t, err)
		b, err := IdentifierHash("CS2024001")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("must variant agrees on canonical input", func(t *testing.T) {
		h, err := IdentifierHash("CS2024001")
		require.NoError(t, err)
		assert.Equal(t, h, MustIdentifierHash("CS2024001"))
	})

	t.Run("rejects blank and over-long", func(t *testing.T) {
		for _, in := range []string{"", "   ", strings.Repeat("x", 65)} {
			h, err := IdentifierHash(in)
			require.Error(t, err)
			assert.Equal(t, models.Hash256{}, h)
			assert.True(t,
				dErrors.HasCode(err, dErrors.CodeInvalidInput) || dErrors.HasCode(err, dErrors.CodeValidation))
		}
	})
}

func TestCanonicalIdentifier(t *testing.T) {
	got, err := CanonicalIdentifier("  Ab-12 ")
	require.NoError(t, err)
	assert.Equal(t, "Ab-12", got)

	got, err = CanonicalIdentifier(strings.Repeat("y", 64))
	require.NoError(t, err)
	assert.Len(t, got, 64)
}
