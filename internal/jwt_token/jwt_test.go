package jwttoken

import (
	"testing"
	"time"

	dErrors "identix/pkg/domain-errors"
	"identix/pkg/platform/middleware/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "test-signing-key"

var jwtService = NewJWTService(testKey, "identix", time.Hour)

func Test_GenerateIssuerToken(t *testing.T) {
	token, err := jwtService.GenerateIssuerToken("registrar-01", auth.RoleIssuer)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "registrar-01", claims.Subject)
	assert.Equal(t, auth.RoleIssuer, claims.Role)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_GenerateIssuerToken_RejectsEmptyIssuer(t *testing.T) {
	_, err := jwtService.GenerateIssuerToken("  ", auth.RoleIssuer)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.ErrorContains(t, err, "invalid token")
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	svc := NewJWTService(testKey, "identix", time.Minute)
	token, err := svc.GenerateIssuerToken("registrar-01", auth.RoleIssuer)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.ValidateToken(token)
	require.ErrorContains(t, err, "token expired")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_RejectsWrongKey(t *testing.T) {
	other := NewJWTService("another-key", "identix", time.Hour)
	token, err := other.GenerateIssuerToken("registrar-01", auth.RoleIssuer)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
}

func Test_ValidateToken_RejectsInvalidIssuer(t *testing.T) {
	other := NewJWTService(testKey, "someone-else", time.Hour)
	token, err := other.GenerateIssuerToken("registrar-01", auth.RoleIssuer)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorContains(t, err, "invalid token issuer")
}

func Test_ValidateToken_RejectsAlgorithmConfusion(t *testing.T) {
	claims := IssuerTokenClaims{
		Role: auth.RoleIssuer,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "registrar-01",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "identix",
			ID:        uuid.NewString(),
		},
	}

	cases := []struct {
		name       string
		signMethod jwt.SigningMethod
		signKey    any
	}{
		{
			name:       "hs512 header rejected",
			signMethod: jwt.SigningMethodHS512,
			signKey:    []byte(testKey),
		},
		{
			name:       "alg none rejected",
			signMethod: jwt.SigningMethodNone,
			signKey:    jwt.UnsafeAllowNoneSignatureType,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			tokenString, err := jwt.NewWithClaims(tt.signMethod, claims).SignedString(tt.signKey)
			require.NoError(t, err)

			_, err = jwtService.ValidateToken(tokenString)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func Test_Adapter_MapsClaims(t *testing.T) {
	token, err := jwtService.GenerateIssuerToken("registrar-01", auth.RoleIssuer)
	require.NoError(t, err)

	claims, err := NewJWTServiceAdapter(jwtService).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, &auth.IssuerClaims{IssuerID: "registrar-01", Role: auth.RoleIssuer}, claims)
}
