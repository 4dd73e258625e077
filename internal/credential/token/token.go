// Package token generates and parses the short lookup codes handed to
// credential holders.
//
// A token is "IDX-" followed by six symbols from a 32-symbol alphabet that
// omits 0, O, 1 and I. The space is 32^6 = 2^30 codes. Uniqueness is not
// checked here; the metadata store's conditional insert enforces it and the
// issuer retries on collision.
package token

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	dErrors "identix/pkg/domain-errors"
)

const (
	Prefix   = "IDX-"
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	Length   = 6
)

// Token is a validated lookup code.
type Token string

func (t Token) String() string {
	return string(t)
}

// Generator draws tokens from a random source.
type Generator struct {
	rand io.Reader
}

// Option configures a Generator.
type Option func(*Generator)

// WithRandom overrides the random source, for deterministic tests.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) {
		if r != nil {
			g.rand = r
		}
	}
}

// NewGenerator returns a Generator backed by crypto/rand.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{rand: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// New draws one token. 256 is a multiple of the alphabet size, so taking
// each byte modulo 32 is uniform.
func (g *Generator) New() (Token, error) {
	var buf [Length]byte
	if _, err := io.ReadFull(g.rand, buf[:]); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	var b strings.Builder
	b.Grow(len(Prefix) + Length)
	b.WriteString(Prefix)
	for _, c := range buf {
		b.WriteByte(Alphabet[int(c)%len(Alphabet)])
	}
	return Token(b.String()), nil
}

// Parse normalizes user input (trims space, upper-cases) and validates the format.
func Parse(raw string) (Token, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "token is required")
	}
	if !Valid(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "token must look like IDX-XXXXXX")
	}
	return Token(s), nil
}

// Valid reports whether s is a well-formed token, without normalization.
func Valid(s string) bool {
	body, ok := strings.CutPrefix(s, Prefix)
	if !ok || len(body) != Length {
		return false
	}
	for i := 0; i < len(body); i++ {
		if strings.IndexByte(Alphabet, body[i]) < 0 {
			return false
		}
	}
	return true
}
